package cliapp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestProtectFlags(t *testing.T) {
	foo := &cli.StringFlag{Name: "foo", Value: "bar"}
	timeout := &cli.DurationFlag{Name: "timeout", Value: time.Second}
	out := ProtectFlags([]cli.Flag{foo, timeout})
	require.Len(t, out, 2)

	cpy := out[0].(*cli.StringFlag)
	require.NotSame(t, foo, cpy)
	require.Equal(t, "foo", cpy.Name)
	cpy.Value = "baz"
	require.Equal(t, "bar", foo.Value)
	require.Equal(t, time.Second, out[1].(*cli.DurationFlag).Value)
}

func TestProtectFlagsUnknownType(t *testing.T) {
	require.Panics(t, func() {
		ProtectFlags([]cli.Flag{&cli.Float64Flag{Name: "ratio"}})
	})
}
