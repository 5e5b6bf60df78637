package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"footfall/internal/platform/logger"
	"footfall/internal/services/nightwatch/domain"
)

// DiagConfig tunes the on-device inspection
type DiagConfig struct {
	// Host is the tunnel server; each antenna is reached through its
	// remote port on this host
	Host     string
	User     string
	Password string

	// PingTarget is pinged from the device to measure uplink loss
	PingTarget string
	// QueueDir holds the device's undelivered event files
	QueueDir string

	// PoolSize bounds concurrent SSH sessions
	PoolSize int
	// PerAntenna bounds one device's whole inspection
	PerAntenna time.Duration
	// CommandRetries is how often a single command is retried
	CommandRetries int
}

// Inspector runs diagnostics over SSH through the reverse tunnels
type Inspector struct {
	cfg DiagConfig
	log logger.Logger
	sem chan struct{}
}

// NewInspector constructs an inspector with a bounded session pool
func NewInspector(cfg DiagConfig, log logger.Logger) *Inspector {
	if cfg.PingTarget == "" {
		cfg.PingTarget = "8.8.8.8"
	}
	if cfg.QueueDir == "" {
		cfg.QueueDir = "/var/spool/probe"
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.PerAntenna <= 0 {
		cfg.PerAntenna = 90 * time.Second
	}
	if cfg.CommandRetries <= 0 {
		cfg.CommandRetries = 2
	}
	return &Inspector{cfg: cfg, log: log, sem: make(chan struct{}, cfg.PoolSize)}
}

// InspectAll inspects every target concurrently. A failed inspection yields
// an unknown result rather than an error so the sweep never blocks on one
// device
func (in *Inspector) InspectAll(ctx context.Context, ports map[string]int) map[string]domain.Diagnostics {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]domain.Diagnostics, len(ports))
	)
	for antenna, port := range ports {
		wg.Add(1)
		go func(antenna string, port int) {
			defer wg.Done()
			select {
			case in.sem <- struct{}{}:
				defer func() { <-in.sem }()
			case <-ctx.Done():
				return
			}
			d := in.inspect(ctx, antenna, port)
			mu.Lock()
			out[antenna] = d
			mu.Unlock()
		}(antenna, port)
	}
	wg.Wait()
	return out
}

func (in *Inspector) inspect(ctx context.Context, antenna string, port int) domain.Diagnostics {
	log := in.log.With().Str("antenna", antenna).Logger()

	// Field devices have no tracked host keys; the tunnel server is the
	// trust boundary
	conf := &ssh.ClientConfig{
		User:            in.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(in.cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}
	addr := fmt.Sprintf("%s:%d", in.cfg.Host, port)
	client, err := ssh.Dial("tcp", addr, conf)
	if err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("ssh dial failed, diagnostics unknown")
		return domain.Diagnostics{}
	}
	defer client.Close()

	// hard stop for the whole inspection, sessions have no deadline of
	// their own
	watchdog := time.AfterFunc(in.cfg.PerAntenna, func() { client.Close() })
	defer watchdog.Stop()
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < in.cfg.PerAntenna {
		watchdog.Reset(time.Until(dl))
	}

	signalOut, err := in.run(client, `awk 'NR==3 {print int($3)}' /proc/net/wireless`)
	if err != nil {
		log.Warn().Err(err).Msg("wifi signal probe failed, diagnostics unknown")
		return domain.Diagnostics{}
	}
	pingOut, err := in.run(client, fmt.Sprintf("ping -c 5 -q -W 2 %s", in.cfg.PingTarget))
	if err != nil {
		log.Warn().Err(err).Msg("ping probe failed, diagnostics unknown")
		return domain.Diagnostics{}
	}
	queueOut, err := in.run(client, fmt.Sprintf("find %s -type f | wc -l", in.cfg.QueueDir))
	if err != nil {
		log.Warn().Err(err).Msg("queue probe failed, diagnostics unknown")
		return domain.Diagnostics{}
	}

	signal, sErr := strconv.Atoi(strings.TrimSpace(signalOut))
	loss, lErr := parseLoss(pingOut)
	queue, qErr := strconv.Atoi(strings.TrimSpace(queueOut))
	if sErr != nil || lErr != nil || qErr != nil {
		log.Warn().Str("signal", signalOut).Str("queue", queueOut).
			Msg("unparseable diagnostics output")
		return domain.Diagnostics{}
	}
	return domain.Diagnostics{
		Known:       true,
		WifiSignal:  signal,
		PingLossPct: loss,
		QueueDepth:  queue,
	}
}

// run executes one command in its own session with retries
func (in *Inspector) run(client *ssh.Client, cmd string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= in.cfg.CommandRetries; attempt++ {
		sess, err := client.NewSession()
		if err != nil {
			lastErr = err
			continue
		}
		out, err := sess.CombinedOutput(cmd)
		sess.Close()
		if err == nil {
			return string(out), nil
		}
		lastErr = err
	}
	return "", lastErr
}

var lossRe = regexp.MustCompile(`([0-9.]+)% packet loss`)

func parseLoss(out string) (float64, error) {
	m := lossRe.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("no packet loss figure in %q", strings.TrimSpace(out))
	}
	return strconv.ParseFloat(m[1], 64)
}
