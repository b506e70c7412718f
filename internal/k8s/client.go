// Package k8s reads cluster membership from the Kubernetes API and installs
// the application chart once the cluster is complete.
package k8s

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// DefaultKubeconfig is where k3s writes the admin kubeconfig on servers.
const DefaultKubeconfig = "/etc/rancher/k3s/k3s.yaml"

// Client wraps Kubernetes API operations used by the coordinator.
type Client struct {
	clientset kubernetes.Interface
	policy    ReadyPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithReadyPolicy overrides the default readiness policy.
func WithReadyPolicy(p ReadyPolicy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// NewClient creates a new Kubernetes client from a kubeconfig file.
func NewClient(kubeconfigPath string, opts ...Option) (*Client, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return NewClientFromInterface(clientset, opts...), nil
}

// NewClientFromInterface wraps an existing clientset (useful for testing).
func NewClientFromInterface(cs kubernetes.Interface, opts ...Option) *Client {
	c := &Client{clientset: cs, policy: DefaultReadyPolicy()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
