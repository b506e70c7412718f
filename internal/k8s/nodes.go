package k8s

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Node is a cluster member as seen by the membership API.
type Node struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ReadyPolicy decides from a status string whether a node counts as ready.
type ReadyPolicy struct {
	// Token must appear as one of the comma-separated status tokens.
	Token string
}

// DefaultReadyPolicy matches kubectl's "Ready" status.
func DefaultReadyPolicy() ReadyPolicy {
	return ReadyPolicy{Token: "Ready"}
}

// IsReady reports whether status satisfies the policy. Tokens are compared
// exactly, so "NotReady" never matches "Ready".
func (p ReadyPolicy) IsReady(status string) bool {
	for _, tok := range strings.Split(status, ",") {
		if strings.TrimSpace(tok) == p.Token {
			return true
		}
	}
	return false
}

// NodeStatus renders the status column the way kubectl get nodes does.
func NodeStatus(node *corev1.Node) string {
	var status []string
	for _, cond := range node.Status.Conditions {
		if cond.Type != corev1.NodeReady {
			continue
		}
		if cond.Status == corev1.ConditionTrue {
			status = append(status, string(cond.Type))
		} else {
			status = append(status, "Not"+string(cond.Type))
		}
	}
	if len(status) == 0 {
		status = append(status, "Unknown")
	}
	if node.Spec.Unschedulable {
		status = append(status, "SchedulingDisabled")
	}
	return strings.Join(status, ",")
}

// ListNodes returns all cluster members with their status.
func (c *Client) ListNodes(ctx context.Context) ([]Node, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	nodes := make([]Node, 0, len(list.Items))
	for i := range list.Items {
		nodes = append(nodes, Node{ID: list.Items[i].Name, Status: NodeStatus(&list.Items[i])})
	}
	return nodes, nil
}

// CountReady returns how many nodes satisfy the readiness policy.
func (c *Client) CountReady(ctx context.Context) (int, error) {
	nodes, err := c.ListNodes(ctx)
	if err != nil {
		return 0, err
	}
	return c.policy.Count(nodes), nil
}

// Count returns the number of ready nodes.
func (p ReadyPolicy) Count(nodes []Node) int {
	n := 0
	for _, node := range nodes {
		if p.IsReady(node.Status) {
			n++
		}
	}
	return n
}
