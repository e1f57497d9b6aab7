package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", input: `"30s"`, want: 30 * time.Second},
		{name: "minutes", input: `"5m"`, want: 5 * time.Minute},
		{name: "composite", input: `"1h30m"`, want: 90 * time.Minute},
		{name: "empty string", input: `""`, want: 0},
		{name: "garbage", input: `"soon"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := yaml.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration())
		})
	}
}

func TestDuration_MarshalYAML(t *testing.T) {
	out, err := yaml.Marshal(Duration(45 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, "45s\n", string(out))
}

func TestDuration_JSONRoundTrip(t *testing.T) {
	out, err := json.Marshal(Duration(2 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, `"2m0s"`, string(out))

	var d Duration
	require.NoError(t, json.Unmarshal(out, &d))
	assert.Equal(t, 2*time.Minute, d.Duration())
}

func TestDuration_UnmarshalJSON_Null(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Equal(t, time.Duration(0), d.Duration())
}
