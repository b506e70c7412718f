package handlers

import (
	"context"
	"fmt"
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterjoin/internal/agent"
	"github.com/imamik/clusterjoin/internal/config"
	"github.com/imamik/clusterjoin/internal/handshake"
	"github.com/imamik/clusterjoin/internal/k8s"
	"github.com/imamik/clusterjoin/internal/metadata"
	"github.com/imamik/clusterjoin/internal/metrics"
	"github.com/imamik/clusterjoin/internal/platform/aws"
	"github.com/imamik/clusterjoin/internal/platform/consul"
	"github.com/imamik/clusterjoin/internal/platform/hcloud"
	"github.com/imamik/clusterjoin/internal/platform/redis"
	"github.com/imamik/clusterjoin/internal/platform/s3"
	"github.com/imamik/clusterjoin/internal/platform/ssm"
	"github.com/imamik/clusterjoin/internal/probe"
	"github.com/imamik/clusterjoin/internal/store"
)

// Membership is what the handlers need from the membership API.
type Membership interface {
	k8s.ReadyCounter
	handshake.NodeLister
}

// Agent drives the local k3s installation.
type Agent interface {
	handshake.ControlService
	handshake.Joiner
}

// Factory function variables for the collaborators of the handshake.
var (
	// newStore opens the configured parameter store. createBucket lets the
	// S3 backend create its bucket.
	newStore = openStore

	// newMetadata returns the instance metadata provider, or nil when the
	// provider is "none".
	newMetadata = openMetadata

	// newDiscoverer returns the fallback discoverer, or nil when fallback
	// discovery is not available for the provider.
	newDiscoverer = openDiscoverer

	// newMembers returns the membership client. The kubeconfig is only
	// read on first use since k3s writes it while starting.
	newMembers = func(cfg *config.Config) Membership {
		return &lazyMembers{
			kubeconfig: cfg.Membership.Kubeconfig,
			policy:     k8s.ReadyPolicy{Token: cfg.Membership.ReadyToken},
		}
	}

	// newAgent creates the k3s driver.
	newAgent = func(cfg config.AgentConfig) Agent {
		return agent.NewK3s(agent.Settings{
			Binary:       cfg.Binary,
			Mode:         cfg.Mode,
			ServerUnit:   cfg.ServerUnit,
			AgentUnit:    cfg.AgentUnit,
			AgentEnvFile: cfg.AgentEnvFile,
			ServerArgs:   cfg.ServerArgs,
			AgentArgs:    cfg.AgentArgs,
		})
	}

	// newProber creates the endpoint health prober.
	newProber = func(cfg config.ParticipantConfig) (handshake.Prober, error) {
		return probe.NewHTTPProber(probe.Options{
			Path:    cfg.HealthPath,
			Timeout: cfg.ProbeTimeout,
			CAFile:  cfg.CAFile,
		})
	}

	// newChartInstaller creates the Helm client.
	newChartInstaller = func(kubeconfig string) handshake.ChartInstaller {
		return k8s.NewHelmClient(kubeconfig)
	}

	// readToken reads the join secret written by the control service.
	readToken = agent.ReadToken
)

func openStore(ctx context.Context, cfg *config.Config, createBucket bool) (store.Store, func() error, error) {
	sc := cfg.Store
	region := sc.Region
	if region == "" {
		region = cfg.Cloud.Region
	}
	noop := func() error { return nil }

	var s store.Store
	closer := noop
	switch sc.Backend {
	case config.BackendSSM:
		var opts []ssm.Option
		if sc.KMSKeyID != "" {
			opts = append(opts, ssm.WithKMSKey(sc.KMSKeyID))
		}
		c, err := ssm.NewClient(ctx, region, opts...)
		if err != nil {
			return nil, nil, err
		}
		s = c
	case config.BackendS3:
		c, err := s3.NewClient(ctx, s3.Options{
			Bucket:   sc.Bucket,
			Region:   region,
			Endpoint: sc.Endpoint,
			Encrypt:  sc.Encrypt,
		})
		if err != nil {
			return nil, nil, err
		}
		if createBucket && sc.CreateBucket {
			if err := c.EnsureBucket(ctx); err != nil {
				return nil, nil, err
			}
		}
		s = c
	case config.BackendConsul:
		c, err := consul.NewClient(sc.Address, sc.Token)
		if err != nil {
			return nil, nil, err
		}
		s = c
	case config.BackendRedis:
		c := redis.NewClient(sc.Address, sc.Password, sc.DB)
		s = c
		closer = c.Close
	case config.BackendMemory:
		s = store.NewMemory()
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", sc.Backend)
	}
	return metrics.InstrumentStore(sc.Backend, s), closer, nil
}

func openMetadata(cfg *config.Config) metadata.Provider {
	switch cfg.Cloud.Provider {
	case config.ProviderAWS:
		return aws.NewMetadata(cfg.Cloud.MetadataEndpoint)
	case config.ProviderHCloud:
		return hcloud.NewMetadata(cfg.Cloud.MetadataEndpoint)
	case config.ProviderStatic:
		st := cfg.Cloud.Static
		return metadata.Static{Identity: metadata.Identity{
			LocalIPv4:  st.LocalIPv4,
			PublicIPv4: st.PublicIPv4,
			InstanceID: st.InstanceID,
			Region:     st.Region,
		}}
	default:
		return nil
	}
}

func openDiscoverer(ctx context.Context, cfg *config.Config, meta metadata.Provider) (handshake.Discoverer, error) {
	logger := log.FromContext(ctx)
	cloud := cfg.Cloud

	switch cloud.Provider {
	case config.ProviderAWS:
		region := cloud.Region
		if region == "" && meta != nil {
			r, err := meta.Region(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve region for fallback discovery: %w", err)
			}
			region = r
		}
		d, err := aws.NewTagDiscoverer(ctx, region, cloud.TagKey, cloud.TagValue)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.ProviderHCloud:
		if cloud.HCloudToken == "" {
			logger.Info("no Hetzner Cloud token configured, fallback discovery disabled")
			return nil, nil
		}
		labels := cloud.Labels
		if len(labels) == 0 {
			labels = map[string]string{cloud.TagKey: cloud.TagValue}
		}
		return hcloud.NewLabelDiscoverer(hcloud.NewRealClient(cloud.HCloudToken), labels), nil
	default:
		return nil, nil
	}
}

// lazyMembers builds the membership client on first use. A missing
// kubeconfig surfaces as a listing error, which the membership wait retries.
type lazyMembers struct {
	kubeconfig string
	policy     k8s.ReadyPolicy

	mu     sync.Mutex
	client *k8s.Client
}

func (l *lazyMembers) get() (*k8s.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client, nil
	}
	c, err := k8s.NewClient(l.kubeconfig, k8s.WithReadyPolicy(l.policy))
	if err != nil {
		return nil, err
	}
	l.client = c
	return c, nil
}

func (l *lazyMembers) CountReady(ctx context.Context) (int, error) {
	c, err := l.get()
	if err != nil {
		return 0, err
	}
	return c.CountReady(ctx)
}

func (l *lazyMembers) ListNodes(ctx context.Context) ([]k8s.Node, error) {
	c, err := l.get()
	if err != nil {
		return nil, err
	}
	return c.ListNodes(ctx)
}

func keysFor(cfg *config.Config) store.Keys {
	return store.Keys{Prefix: cfg.Store.Prefix, Cluster: cfg.Cluster}
}

func chartSpec(c *config.ChartConfig) *k8s.ChartSpec {
	if c == nil {
		return nil
	}
	return &k8s.ChartSpec{
		Release:   c.Release,
		Namespace: c.Namespace,
		RepoURL:   c.RepoURL,
		Chart:     c.Chart,
		Version:   c.Version,
		Values:    c.Values,
		Timeout:   c.Timeout,
	}
}
