package slowcontrol_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tileqc/internal/hw/sim"
	"github.com/vk/tileqc/internal/registry"
	"github.com/vk/tileqc/internal/result"
	"github.com/vk/tileqc/internal/session"
	"github.com/vk/tileqc/modules/slowcontrol"
)

func newSlowControlSession(t *testing.T) *session.Session {
	t.Helper()
	reg := registry.New()
	require.NoError(t, (&slowcontrol.Module{}).Register(reg))
	s, err := session.New(t.TempDir(), "TB3_D8", "0042", reg)
	require.NoError(t, err)
	require.NoError(t, s.BindHardware(sim.NewBoard(3)))
	return s
}

func TestSlowControl_ProgramsBiasAndReadsBack(t *testing.T) {
	t.Parallel()

	s := newSlowControlSession(t)

	res, err := s.Start(context.Background(), "slow_control", map[string]cty.Value{
		"tb_version": cty.StringVal("TB3"),
		"overvolt":   cty.NumberFloatVal(2),
		"settle":     cty.NumberFloatVal(0),
	})
	require.NoError(t, err)
	require.Equal(t, result.CodeOK, res.Code)
	require.True(t, res.IsValid())

	payload := res.Board.Payload
	gpio, _ := payload["gpio"].AsBigFloat().Int64()
	require.Equal(t, int64(0x00100080), gpio, "TB3 selects the MPPC_BIAS1 enable bit")

	// 100 counts per volt, one count per block to compensate rail lengths.
	for i, block := range []string{"A", "B", "C", "D"} {
		dac, _ := payload["dac_"+block].AsBigFloat().Int64()
		require.Equal(t, int64(200+i), dac)
	}

	for sensor := 0; sensor < 8; sensor++ {
		require.Contains(t, payload, fmt.Sprintf("temp_%d", sensor))
	}
	require.Contains(t, payload, "sipm_voltage")
	require.Contains(t, payload, "led_current")
	require.Len(t, res.DataFiles, 1)
}

func TestSlowControl_Rev2EnablePattern(t *testing.T) {
	t.Parallel()

	s := newSlowControlSession(t)

	res, err := s.Start(context.Background(), "slow_control", map[string]cty.Value{
		"tb_version": cty.StringVal("TB3_2"),
		"overvolt":   cty.NumberFloatVal(4),
		"settle":     cty.NumberFloatVal(0),
	})
	require.NoError(t, err)
	require.Equal(t, result.CodeOK, res.Code)

	gpio, _ := res.Board.Payload["gpio"].AsBigFloat().Int64()
	require.Equal(t, int64(0x00200080), gpio)
}

func TestSlowControl_RejectsUnknownRevision(t *testing.T) {
	t.Parallel()

	s := newSlowControlSession(t)

	res, err := s.Start(context.Background(), "slow_control", map[string]cty.Value{
		"tb_version": cty.StringVal("TB2"),
		"overvolt":   cty.NumberFloatVal(2),
	})
	require.NoError(t, err)
	require.Equal(t, result.CodeResolutionFailed, res.Code)
	require.Contains(t, res.Message, "tb_version")
}
