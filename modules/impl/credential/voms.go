package credential

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/hako/durafmt"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/pkg/extproc"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var log = logging.New("credential")

const (
	DefaultCommand = "voms-proxy-info"
	cacheKey       = "actimeleft"
)

var secondsLine = regexp.MustCompile(`^\s*(\d+)\s*$`)

var _ core.CredentialProvider = (*VOMSProxy)(nil)

// VOMSProxy checks that a VOMS proxy with enough lifetime left is available to the grid tools.
type VOMSProxy struct {
	runner      extproc.Runner
	command     string
	proxyFile   string
	minLifetime time.Duration
	ttl         time.Duration

	cache *cache.Cache
	group singleflight.Group
}

func NewVOMSProxy(runner extproc.Runner, cfg modules.CredentialConfig) *VOMSProxy {
	command := cfg.Command
	if command == "" {
		command = DefaultCommand
	}

	ttl := cfg.CacheTTL.Std()
	return &VOMSProxy{
		runner:      runner,
		command:     command,
		proxyFile:   os.Getenv("X509_USER_PROXY"),
		minLifetime: cfg.MinLifetime.Std(),
		ttl:         ttl,
		cache:       cache.New(ttl, 2*ttl),
	}
}

// Ensure fails with core.ErrCredential when no usable proxy is found. A successful
// check is reused for the configured cache ttl.
func (p *VOMSProxy) Ensure(ctx context.Context) error {
	if _, found := p.cache.Get(cacheKey); found {
		return nil
	}

	_, err, _ := p.group.Do(cacheKey, func() (interface{}, error) {
		left, err := p.timeLeft(ctx)
		if err != nil {
			return nil, err
		}

		if left <= 0 {
			return nil, fmt.Errorf("%w: proxy expired", core.ErrCredential)
		}

		if left < p.minLifetime {
			log.Warnw("proxy expires soon", "left", durafmt.Parse(left).LimitFirstN(2).String(), "threshold", p.minLifetime)
		} else {
			log.Debugw("proxy valid", "left", durafmt.Parse(left).LimitFirstN(2).String())
		}

		if p.ttl > 0 {
			p.cache.Set(cacheKey, left, cache.DefaultExpiration)
		}
		return left, nil
	})

	return err
}

func (p *VOMSProxy) timeLeft(ctx context.Context) (time.Duration, error) {
	args := []string{"--actimeleft"}
	if p.proxyFile != "" {
		args = append(args, "--file", p.proxyFile)
	}

	out, err := p.runner.Run(ctx, extproc.Command(p.command, args...))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v: %s", core.ErrCredential, p.command, err, out.String())
	}

	m, ok := out.Last(secondsLine)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected %s output: %s", core.ErrCredential, p.command, out.String())
	}

	secs, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %q: %v", core.ErrCredential, m[1], err)
	}

	return time.Duration(secs) * time.Second, nil
}

var _ core.CredentialProvider = Disabled{}

// Disabled accepts every request, for setups where the grid tools find their credentials on their own.
type Disabled struct{}

func (Disabled) Ensure(context.Context) error {
	return nil
}
