package iothub

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/ferux/twinpatcher/internal/model"
)

func TestParseConnectionString(t *testing.T) {
	is := is.New(t)

	cs, err := ParseConnectionString("HostName=hub.azure-devices.net;SharedAccessKeyName=iothubowner;SharedAccessKey=c2VjcmV0a2V5PQ==")
	is.NoErr(err)
	is.Equal(cs.HostName, "hub.azure-devices.net")
	is.Equal(cs.SharedAccessKeyName, "iothubowner")
	is.Equal(string(cs.SharedAccessKey), "secretkey=")
}

func TestParseConnectionStringErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: "  "},
		{name: "no host", in: "SharedAccessKey=a2V5"},
		{name: "no key", in: "HostName=hub"},
		{name: "not key value", in: "HostName=hub;garbage"},
		{name: "bad base64", in: "HostName=hub;SharedAccessKey=***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConnectionString(tt.in)
			if !errors.Is(err, model.ErrBadConnString) {
				t.Fatalf("exp ErrBadConnString got %v", err)
			}
		})
	}
}

func TestParseConnectionStringSkipsEmptySegments(t *testing.T) {
	is := is.New(t)

	cs, err := ParseConnectionString("HostName=hub;;SharedAccessKey=a2V5;DeviceId=ignored;")
	is.NoErr(err)
	is.Equal(cs.HostName, "hub")
	is.Equal(cs.SharedAccessKeyName, "")
	is.Equal(string(cs.SharedAccessKey), "key")
}
