package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"wondertales/internal/domain/story"
	"wondertales/internal/story/audio"
)

// startupGrace is how long Open waits for the capture process to fail
// before treating the device as open.
const startupGrace = 300 * time.Millisecond

// CommandMicrophone captures raw 16-bit mono PCM from an ALSA-style
// recorder process (arecord by default) and wraps it as WAV on stop.
type CommandMicrophone struct {
	Command    string
	SampleRate int
}

func NewCommandMicrophone(command string, sampleRate int) *CommandMicrophone {
	if command == "" {
		command = "arecord"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &CommandMicrophone{Command: command, SampleRate: sampleRate}
}

func (m *CommandMicrophone) args() []string {
	return []string{"-q", "-f", "S16_LE", "-r", strconv.Itoa(m.SampleRate), "-c", "1", "-t", "raw"}
}

func (m *CommandMicrophone) Open(ctx context.Context) (Capture, error) {
	path, err := exec.LookPath(m.Command)
	if err != nil {
		return nil, story.DeviceUnavailable("open microphone", fmt.Errorf("%s not found: %w", m.Command, err))
	}

	c := &commandCapture{rate: m.SampleRate, done: make(chan struct{})}
	c.cmd = exec.Command(path, m.args()...)
	c.cmd.Stdout = &c.pcm
	c.cmd.Stderr = &c.stderr

	if err := c.cmd.Start(); err != nil {
		return nil, classifyFailure("", err)
	}
	go func() {
		c.waitErr = c.cmd.Wait()
		close(c.done)
	}()

	select {
	case <-c.done:
		return nil, classifyFailure(c.stderr.String(), c.waitErr)
	case <-ctx.Done():
		c.cmd.Process.Kill()
		<-c.done
		return nil, ctx.Err()
	case <-time.After(startupGrace):
		return c, nil
	}
}

type commandCapture struct {
	cmd     *exec.Cmd
	rate    int
	pcm     bytes.Buffer
	stderr  bytes.Buffer
	done    chan struct{}
	waitErr error
}

func (c *commandCapture) Stop() ([]byte, string, error) {
	// SIGINT lets arecord flush; platforms without it just get killed
	if err := c.cmd.Process.Signal(os.Interrupt); err != nil {
		c.cmd.Process.Kill()
	}

	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		c.cmd.Process.Kill()
		<-c.done
	}

	// pcm is only safe to read once Wait has returned
	pcm := c.pcm.Bytes()
	if len(pcm)%2 == 1 {
		pcm = pcm[:len(pcm)-1]
	}
	if len(pcm) == 0 {
		return nil, "", classifyFailure(c.stderr.String(), errors.New("no audio captured"))
	}
	return audio.EncodeWAV(pcm, c.rate, 1), "audio/wav", nil
}

// classifyFailure maps recorder process output onto the microphone error kinds.
func classifyFailure(stderr string, err error) error {
	if err == nil {
		err = errors.New("recorder exited immediately")
	}
	msg := strings.TrimSpace(stderr)
	if msg != "" {
		err = fmt.Errorf("%w: %s", err, msg)
	}

	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "permission denied") || strings.Contains(lower, "operation not permitted") || errors.Is(err, os.ErrPermission) {
		return story.PermissionDenied("open microphone", err)
	}
	return story.DeviceUnavailable("open microphone", err)
}
