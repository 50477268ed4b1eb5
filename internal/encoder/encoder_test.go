package encoder_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reelsmith/internal/config"
	"reelsmith/internal/encoder"
	"reelsmith/internal/services"
	"reelsmith/internal/testsupport"
	"reelsmith/internal/toolexec"
)

func renderConfig() config.Render {
	cfg := config.Default().Render
	return cfg
}

func encodeArgs(output string) func(codec string) []string {
	return func(codec string) []string {
		return []string{"-y", "-i", "in.mp4", "-c:v", codec, output}
	}
}

func TestEncodeHardwareFirst(t *testing.T) {
	output := filepath.Join(t.TempDir(), "seg.mp4")
	runner := testsupport.NewStubRunner()
	runner.Handle("ffmpeg", func(cmd toolexec.Command) (toolexec.Result, error) {
		testsupport.WriteSizedFile(t, output, 1024)
		return toolexec.Result{}, nil
	})

	enc := encoder.New(runner, "ffmpeg", renderConfig(), nil)
	strategy, err := enc.Encode(context.Background(), encoder.Request{
		Args:    encodeArgs(output),
		Output:  output,
		Timeout: time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, "hardware", strategy)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	require.Contains(t, calls[0].Args, "h264_nvenc")
}

func TestEncodeFallsBackToSoftwareOnce(t *testing.T) {
	output := filepath.Join(t.TempDir(), "seg.mp4")
	runner := testsupport.NewStubRunner()
	var attempts int32
	runner.Handle("ffmpeg", func(cmd toolexec.Command) (toolexec.Result, error) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return toolexec.Result{}, errors.New("nvenc device not found")
		}
		testsupport.WriteSizedFile(t, output, 1024)
		return toolexec.Result{}, nil
	})

	enc := encoder.New(runner, "ffmpeg", renderConfig(), nil)
	strategy, err := enc.Encode(context.Background(), encoder.Request{
		Args:    encodeArgs(output),
		Output:  output,
		Timeout: time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, "software", strategy)

	calls := runner.Calls()
	require.Len(t, calls, 2)
	require.Contains(t, calls[0].Args, "h264_nvenc")
	require.Contains(t, calls[1].Args, "libx264")
}

func TestEncodeIdenticalArgumentContract(t *testing.T) {
	output := filepath.Join(t.TempDir(), "seg.mp4")
	runner := testsupport.NewStubRunner()
	runner.Respond("ffmpeg", nil, errors.New("boom"))

	enc := encoder.New(runner, "ffmpeg", renderConfig(), nil)
	_, err := enc.Encode(context.Background(), encoder.Request{
		Args:    encodeArgs(output),
		Output:  output,
		Timeout: time.Minute,
	})
	require.Error(t, err)

	calls := runner.Calls()
	require.Len(t, calls, 2)
	for i := range calls[0].Args {
		if calls[0].Args[i] == "h264_nvenc" {
			require.Equal(t, "libx264", calls[1].Args[i], "only the codec flag may differ")
			continue
		}
		require.Equal(t, calls[0].Args[i], calls[1].Args[i])
	}
}

func TestEncodeAllStrategiesFailed(t *testing.T) {
	output := filepath.Join(t.TempDir(), "seg.mp4")
	runner := testsupport.NewStubRunner()
	runner.Respond("ffmpeg", nil, errors.New("boom"))

	enc := encoder.New(runner, "ffmpeg", renderConfig(), nil)
	_, err := enc.Encode(context.Background(), encoder.Request{
		Args:    encodeArgs(output),
		Output:  output,
		Timeout: time.Minute,
	})
	require.ErrorIs(t, err, services.ErrExternalTool)
}

func TestEncodeEmptyOutputIsFailure(t *testing.T) {
	output := filepath.Join(t.TempDir(), "seg.mp4")
	runner := testsupport.NewStubRunner()

	enc := encoder.New(runner, "ffmpeg", renderConfig(), nil)
	_, err := enc.Encode(context.Background(), encoder.Request{
		Args:    encodeArgs(output),
		Output:  output,
		Timeout: time.Minute,
	})
	require.Error(t, err)
	// Both strategies ran even though the command "succeeded".
	require.Len(t, runner.Calls(), 2)
}

func TestSoftwareOnlyWhenHardwareDisabled(t *testing.T) {
	cfg := renderConfig()
	cfg.HardwareEncoder = ""

	output := filepath.Join(t.TempDir(), "seg.mp4")
	runner := testsupport.NewStubRunner()
	runner.Handle("ffmpeg", func(cmd toolexec.Command) (toolexec.Result, error) {
		testsupport.WriteSizedFile(t, output, 512)
		return toolexec.Result{}, nil
	})

	enc := encoder.New(runner, "ffmpeg", cfg, nil)
	strategy, err := enc.Encode(context.Background(), encoder.Request{
		Args:    encodeArgs(output),
		Output:  output,
		Timeout: time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, "software", strategy)
	require.Equal(t, []string{"software"}, enc.StrategyNames())
}

func TestHardwareSlotsSerializeEncodes(t *testing.T) {
	cfg := renderConfig()
	cfg.GPUSlots = 1

	dir := t.TempDir()
	runner := testsupport.NewStubRunner()
	var inFlight, peak int32
	runner.Handle("ffmpeg", func(cmd toolexec.Command) (toolexec.Result, error) {
		current := atomic.AddInt32(&inFlight, 1)
		for {
			observed := atomic.LoadInt32(&peak)
			if current <= observed || atomic.CompareAndSwapInt32(&peak, observed, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		testsupport.WriteSizedFile(t, cmd.Args[len(cmd.Args)-1], 256)
		atomic.AddInt32(&inFlight, -1)
		return toolexec.Result{}, nil
	})

	enc := encoder.New(runner, "ffmpeg", cfg, nil)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			output := filepath.Join(dir, "seg", "out"+string(rune('a'+i))+".mp4")
			_, err := enc.Encode(context.Background(), encoder.Request{
				Args:    encodeArgs(output),
				Output:  output,
				Timeout: time.Minute,
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.Equal(t, int32(1), atomic.LoadInt32(&peak))
}
