package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolverLookupOrder(t *testing.T) {
	tests := []struct {
		name  string
		env   []string
		props map[string]string
		want  string
	}{
		{
			name: "exact env wins",
			env:  []string{"BROWSERSTACK_USERNAME=env-user", "browserstack_username=other"},
			props: map[string]string{"browserstack.username": "prop-user"},
			want:  "env-user",
		},
		{
			name:  "case-insensitive env",
			env:   []string{"BrowserStack_Username=mixed-case"},
			props: map[string]string{"browserstack.username": "prop-user"},
			want:  "mixed-case",
		},
		{
			name:  "empty env falls through to property",
			env:   []string{"BROWSERSTACK_USERNAME="},
			props: map[string]string{"browserstack.username": "prop-user"},
			want:  "prop-user",
		},
		{
			name:  "property only",
			props: map[string]string{"browserstack.username": "prop-user"},
			want:  "prop-user",
		},
		{
			name: "absent everywhere",
			want: "",
		},
		{
			name:  "empty property is absent",
			props: map[string]string{"browserstack.username": ""},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolverWithEnv(tt.env, tt.props)
			assert.Equal(t, tt.want, r.Lookup("BROWSERSTACK_USERNAME", "browserstack.username"))
		})
	}
}

func TestResolverProcessEnvironment(t *testing.T) {
	t.Setenv("UIRUN_RESOLVER_TEST", "from-process")
	r := NewResolver(nil)
	assert.Equal(t, "from-process", r.Env("UIRUN_RESOLVER_TEST"))
	assert.Equal(t, "from-process", r.Env("uirun_resolver_test"))
	assert.Equal(t, "", r.Property("anything"))
}
