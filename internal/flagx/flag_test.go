package flagx

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		valued   []string
		switches []string
		want     []string
	}{
		{
			name:   "short flag with separate value",
			args:   []string{"-c", "conf.json", "-a", "localhost"},
			valued: []string{"-c", "--config"},
			want:   []string{"-c", "conf.json"},
		},
		{
			name:   "long flag with equals",
			args:   []string{"--config=alt.json", "-a", "localhost"},
			valued: []string{"-c", "--config"},
			want:   []string{"--config=alt.json"},
		},
		{
			name:   "unknown flags ignored",
			args:   []string{"-x", "1", "--y=2", "positional"},
			valued: []string{"-c"},
			want:   []string{},
		},
		{
			name:   "flag without value at end is kept as-is",
			args:   []string{"-c"},
			valued: []string{"-c"},
			want:   []string{"-c"},
		},
		{
			name:   "flag followed by another flag",
			args:   []string{"-c", "-notvalue"},
			valued: []string{"-c"},
			want:   []string{"-c"},
		},
		{
			name:     "switch does not swallow the next token",
			args:     []string{"-encrypt", "list", "-a", "h:1"},
			valued:   []string{"-a"},
			switches: []string{"-encrypt"},
			want:     []string{"-encrypt", "-a", "h:1"},
		},
		{
			name:     "switch with explicit value",
			args:     []string{"-encrypt=false"},
			switches: []string{"-encrypt"},
			want:     []string{"-encrypt=false"},
		},
		{
			name:   "repeated flag preserved in order",
			args:   []string{"-c", "one.json", "-c", "two.json"},
			valued: []string{"-c"},
			want:   []string{"-c", "one.json", "-c", "two.json"},
		},
		{
			name:   "empty args",
			args:   []string{},
			valued: []string{"-c"},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.valued, tt.switches...)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	assert.Equal(t, "/path/short.json", ConfigFile([]string{"-c", "/path/short.json"}))
	assert.Equal(t, "/path/long.yaml", ConfigFile([]string{"-config", "/path/long.yaml"}))
	assert.Empty(t, ConfigFile([]string{"-x", "1", "-y", "2"}))
	assert.Equal(t, "/path/2.json", ConfigFile([]string{"-c", "/path/1.json", "-config", "/path/2.json"}))
}
