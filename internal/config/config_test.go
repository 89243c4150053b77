package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	stdtime "time"

	"github.com/matryer/is"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := ioutil.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}

	return path
}

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		EnvConnectionString, EnvConnectionStringAlt, EnvSentryDSN,
		EnvTelegramAPI, EnvTelegramChatID, EnvHTTPListen, EnvJournalPath,
	} {
		t.Setenv(key, "")
	}
}

func TestParse(t *testing.T) {
	is := is.New(t)
	clearEnv(t)

	path := writeFile(t, "config.json", `{
		"debug": true,
		"http": {"listen": ":8080", "timeout": "15s"},
		"iothub": {"connection_string": "HostName=h;SharedAccessKey=a2V5", "page_size": 50, "max_in_flight": 8},
		"journal": {"path": "/tmp/journal.db"}
	}`)

	app, err := Parse(path)
	is.NoErr(err)

	is.True(app.Debug)
	is.Equal(app.HTTP.Listen, ":8080")
	is.Equal(app.HTTP.Timeout.Std(), 15*stdtime.Second)
	is.Equal(app.IoTHub.ConnectionString, "HostName=h;SharedAccessKey=a2V5")
	is.Equal(app.IoTHub.PageSize, 50)
	is.Equal(app.IoTHub.MaxInFlight, 8)
	is.Equal(app.IoTHub.APIVersion, DefaultAPIVersion)
	is.Equal(app.Journal.Path, "/tmp/journal.db")
}

func TestParseWithoutFile(t *testing.T) {
	is := is.New(t)
	clearEnv(t)
	t.Setenv(EnvConnectionString, "HostName=env")

	app, err := Parse("")
	is.NoErr(err)

	is.Equal(app.IoTHub.ConnectionString, "HostName=env")
	is.Equal(app.IoTHub.PageSize, DefaultPageSize)
	is.True(app.HTTP == nil)
}

func TestParseEnvOverridesFile(t *testing.T) {
	is := is.New(t)
	clearEnv(t)
	t.Setenv(EnvConnectionStringAlt, "HostName=alt")
	t.Setenv(EnvHTTPListen, ":9090")
	t.Setenv(EnvJournalPath, "/var/lib/journal.db")

	path := writeFile(t, "config.json", `{"iothub": {"connection_string": "HostName=file"}}`)

	app, err := Parse(path)
	is.NoErr(err)
	is.Equal(app.IoTHub.ConnectionString, "HostName=alt")
	is.Equal(app.HTTP.Listen, ":9090")
	is.Equal(app.Journal.Path, "/var/lib/journal.db")

	// the historical name wins over the alternative one
	t.Setenv(EnvConnectionString, "HostName=primary")

	app, err = Parse(path)
	is.NoErr(err)
	is.Equal(app.IoTHub.ConnectionString, "HostName=primary")
}

func TestParseMissingFile(t *testing.T) {
	clearEnv(t)

	if _, err := Parse("/nonexistent/config.json"); err == nil {
		t.Fatal("exp error for missing file")
	}
}

func TestParseInvalidJSON(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{"iothub": [}`)

	if _, err := Parse(path); err == nil {
		t.Fatal("exp error for invalid json")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		app     Application
		wantErr bool
	}{
		{
			name: "valid",
			app:  Application{IoTHub: IoTHub{PageSize: 100}},
		},
		{
			name:    "page size too big",
			app:     Application{IoTHub: IoTHub{PageSize: 5000}},
			wantErr: true,
		},
		{
			name:    "negative in flight",
			app:     Application{IoTHub: IoTHub{PageSize: 100, MaxInFlight: -1}},
			wantErr: true,
		},
		{
			name:    "http without listen",
			app:     Application{HTTP: &HTTP{}, IoTHub: IoTHub{PageSize: 100}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.app.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	is := is.New(t)
	clearEnv(t)
	os.Unsetenv(EnvConnectionString)

	path := writeFile(t, ".env", EnvConnectionString+"=\"HostName=dotenv;SharedAccessKey=a2V5\"\n")

	is.NoErr(LoadDotEnv(path))
	is.Equal(os.Getenv(EnvConnectionString), "HostName=dotenv;SharedAccessKey=a2V5")

	is.NoErr(LoadDotEnv(""))
	is.True(LoadDotEnv("/nonexistent/.env") != nil)
}
