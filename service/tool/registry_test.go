package tool

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text string `json:"text"`
}

type echoOutput struct {
	Text string `json:"text"`
}

type echoService struct{}

func (echoService) Name() string { return "system.echo" }

func (echoService) Methods() Signatures {
	return Signatures{
		{
			Name:   "say",
			Input:  reflect.TypeOf(&echoInput{}),
			Output: reflect.TypeOf(&echoOutput{}),
		},
	}
}

func (s echoService) Method(name string) (Executable, error) {
	if name != "say" {
		return nil, NewMethodNotFoundError(name)
	}
	return func(_ context.Context, in, out interface{}) error {
		input, ok := in.(*echoInput)
		if !ok {
			return NewInvalidInputError(in)
		}
		output, ok := out.(*echoOutput)
		if !ok {
			return NewInvalidOutputError(out)
		}
		output.Text = input.Text
		return nil
	}, nil
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoService{})

	assert.Equal(t, []string{"system_echo"}, registry.Names())

	// lookup normalises the requested name
	service := registry.Lookup("System.Echo")
	require.NotNil(t, service)
	assert.Nil(t, registry.Lookup("missing"))

	method, err := service.Method("say")
	require.NoError(t, err)
	var out echoOutput
	require.NoError(t, method(context.Background(), &echoInput{Text: "hi"}, &out))
	assert.Equal(t, "hi", out.Text)

	_, err = service.Method("shout")
	assert.EqualError(t, err, "method shout not found")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "system_exec", Normalize(" System.Exec "))
	assert.Equal(t, "web_fetch", Normalize("web-fetch"))
}
