package k8s

import (
	"context"
	"fmt"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
)

// ChartSpec describes the application release installed after the cluster
// reaches its expected size.
type ChartSpec struct {
	Release   string                 `yaml:"release"`
	Namespace string                 `yaml:"namespace"`
	RepoURL   string                 `yaml:"repoURL"`
	Chart     string                 `yaml:"chart"`
	Version   string                 `yaml:"version"`
	Values    map[string]interface{} `yaml:"values"`
	Timeout   time.Duration          `yaml:"timeout"`
}

// Validate checks the required fields.
func (s ChartSpec) Validate() error {
	if s.Chart == "" {
		return fmt.Errorf("chart name is required")
	}
	if s.Release == "" {
		return fmt.Errorf("release name is required")
	}
	return nil
}

// HelmClient handles Helm operations.
type HelmClient struct {
	settings   *cli.EnvSettings
	kubeconfig string
}

// NewHelmClient creates a HelmClient using the given kubeconfig file.
func NewHelmClient(kubeconfigPath string) *HelmClient {
	return &HelmClient{
		settings:   cli.New(),
		kubeconfig: kubeconfigPath,
	}
}

// InstallOrUpgrade installs the chart, or upgrades the release if it already
// exists.
func (h *HelmClient) InstallOrUpgrade(ctx context.Context, spec ChartSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	logger := log.FromContext(ctx).WithValues("release", spec.Release, "chart", spec.Chart)

	namespace := spec.Namespace
	if namespace == "" {
		namespace = "default"
	}
	timeout := spec.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	restConfig, err := clientcmd.BuildConfigFromFlags("", h.kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to create rest config: %w", err)
	}

	actionConfig := new(action.Configuration)
	clientGetter := &genericRESTClientGetter{
		config:    restConfig,
		namespace: namespace,
	}

	debug := func(format string, v ...interface{}) {
		logger.V(1).Info(fmt.Sprintf(format, v...))
	}
	if err := actionConfig.Init(clientGetter, namespace, os.Getenv("HELM_DRIVER"), debug); err != nil {
		return fmt.Errorf("failed to init action config: %w", err)
	}

	cp := &action.ChartPathOptions{}
	cp.RepoURL = spec.RepoURL
	cp.Version = spec.Version

	chartPath, err := cp.LocateChart(spec.Chart, h.settings)
	if err != nil {
		return fmt.Errorf("failed to locate chart: %w", err)
	}

	chart, err := loader.Load(chartPath)
	if err != nil {
		return fmt.Errorf("failed to load chart: %w", err)
	}

	histClient := action.NewHistory(actionConfig)
	histClient.Max = 1
	if _, err := histClient.Run(spec.Release); err == nil {
		logger.Info("upgrading release")
		upgrade := action.NewUpgrade(actionConfig)
		upgrade.Namespace = namespace
		upgrade.Wait = true
		upgrade.Timeout = timeout
		if _, err := upgrade.RunWithContext(ctx, spec.Release, chart, spec.Values); err != nil {
			return fmt.Errorf("helm upgrade failed: %w", err)
		}
		return nil
	}

	logger.Info("installing release")
	install := action.NewInstall(actionConfig)
	install.Namespace = namespace
	install.ReleaseName = spec.Release
	install.CreateNamespace = true
	install.Wait = true
	install.Timeout = timeout
	if _, err := install.RunWithContext(ctx, chart, spec.Values); err != nil {
		return fmt.Errorf("helm install failed: %w", err)
	}

	return nil
}

// genericRESTClientGetter implements basic RESTClientGetter for Helm.
type genericRESTClientGetter struct {
	config    *rest.Config
	namespace string
}

func (g *genericRESTClientGetter) ToRESTConfig() (*rest.Config, error) {
	return g.config, nil
}

func (g *genericRESTClientGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	discoveryClient, err := discovery.NewDiscoveryClientForConfig(g.config)
	if err != nil {
		return nil, err
	}
	return memory.NewMemCacheClient(discoveryClient), nil
}

func (g *genericRESTClientGetter) ToRESTMapper() (meta.RESTMapper, error) {
	discoveryClient, err := g.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(discoveryClient), nil
}

func (g *genericRESTClientGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	overrides := &clientcmd.ConfigOverrides{Context: clientcmdapi.Context{Namespace: g.namespace}}
	return clientcmd.NewDefaultClientConfig(*clientcmdapi.NewConfig(), overrides)
}
