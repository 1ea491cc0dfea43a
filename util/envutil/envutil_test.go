package envutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetenv(t *testing.T) {
	var env []string

	env, err := Setenv(env, "foo", "foo")
	require.NoError(t, err)
	require.Equal(t, env, []string{"foo=foo"})

	env, err = Setenv(env, "foo", "bar")
	require.NoError(t, err)
	require.Equal(t, env, []string{"foo=bar"})

	env, err = Setenv(env, "bao", "bab")
	require.NoError(t, err)
	require.Equal(t, env, []string{"foo=bar", "bao=bab"})
}

func TestSetenv_InvalidKey(t *testing.T) {
	_, err := Setenv(nil, "foo=bar", "baz")
	require.Error(t, err)
}

func TestGetenv(t *testing.T) {
	var val string

	val = Getenv([]string{}, "foo")
	require.Equal(t, val, "")

	val = Getenv([]string{"foo=bar"}, "foo")
	require.Equal(t, val, "bar")
}

func TestLookupEnv(t *testing.T) {
	_, ok := LookupEnv([]string{}, "foo")
	require.False(t, ok)

	val, ok := LookupEnv([]string{"foo=bar"}, "foo")
	require.True(t, ok)
	require.Equal(t, val, "bar")
}
