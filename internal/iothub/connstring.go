package iothub

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ferux/twinpatcher/internal/model"
)

// ConnectionString holds parts of a service connection string.
type ConnectionString struct {
	HostName            string
	SharedAccessKeyName string
	SharedAccessKey     []byte
}

// ParseConnectionString splits s into its key/value pairs. Unknown keys are
// ignored.
func ParseConnectionString(s string) (cs ConnectionString, err error) {
	if strings.TrimSpace(s) == "" {
		return cs, fmt.Errorf("empty: %w", model.ErrBadConnString)
	}

	var key string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		idx := strings.IndexByte(part, '=')
		if idx <= 0 {
			return cs, fmt.Errorf("segment %q is not key=value: %w", part, model.ErrBadConnString)
		}

		// base64 keys may end with '=' so only the first one separates.
		name, value := part[:idx], part[idx+1:]
		switch name {
		case "HostName":
			cs.HostName = value
		case "SharedAccessKeyName":
			cs.SharedAccessKeyName = value
		case "SharedAccessKey":
			key = value
		}
	}

	if cs.HostName == "" {
		return cs, fmt.Errorf("HostName is missing: %w", model.ErrBadConnString)
	}

	if key == "" {
		return cs, fmt.Errorf("SharedAccessKey is missing: %w", model.ErrBadConnString)
	}

	cs.SharedAccessKey, err = base64.StdEncoding.DecodeString(key)
	if err != nil {
		return cs, fmt.Errorf("decoding SharedAccessKey: %v: %w", err, model.ErrBadConnString)
	}

	return cs, nil
}
