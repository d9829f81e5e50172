// Package gatekit provides a content-moderation and human-in-the-loop
// approval gateway for AI agent tool execution.
//
// Tool calls and model responses are classified against an external
// moderation API and mapped through a policy table to one of three actions:
// allow, confirm or block.  Confirm-rated items park on an approval registry
// until a human reviewer decides or the wait times out; timeouts are treated
// as block.  A separate security gateway client screens content with the
// opposite failure mode: the classifier fails open, the gateway fails
// closed.
//
// The gateway is designed to be embedded in host applications.  End-users
// typically interact with it via the Service façade exposed by the root
// package:
//
//	srv := gatekit.New(gatekit.WithConfig(config))
//	srv.RegisterExtensionServices(myTool{})
//	result, err := srv.ExecuteTool(ctx, &gate.Call{ID: id, Tool: "exec", Method: "run", Args: args})
//
// Pending approvals are listed with srv.ListPending and settled with
// srv.Resolve.  For more details see the individual sub-packages.
package gatekit
