// Package prerequisites checks that the client tools a node role shells out
// to are installed.
package prerequisites

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool represents a client tool that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string
}

// ClusterTools returns the tools every role needs. binary is the configured
// cluster CLI, usually "k3s".
func ClusterTools(binary string) []Tool {
	return []Tool{
		{
			Name:        binary,
			Required:    true,
			Description: "Starts the control service and joins nodes to the cluster",
			InstallURL:  "https://docs.k3s.io/installation",
		},
	}
}

// SystemdTools returns the tools needed when k3s runs as systemd units.
func SystemdTools() []Tool {
	return []Tool{
		{
			Name:        "systemctl",
			Required:    true,
			Description: "Starts and restarts the k3s service units",
			InstallURL:  "https://systemd.io/",
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Check verifies that the specified tools are available.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		path, err := exec.LookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
			result.Version = getToolVersion(path)
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

// CheckCluster checks the tools required for a node role. With systemd set,
// systemctl is required as well.
func CheckCluster(binary string, systemd bool) *CheckResults {
	tools := ClusterTools(binary)
	if systemd {
		tools = append(tools, SystemdTools()...)
	}
	return Check(tools)
}

// getToolVersion attempts to get the version of a tool.
// Returns empty string if version cannot be determined.
func getToolVersion(path string) string {
	for _, flag := range []string{"--version", "version"} {
		// #nosec G204 - path comes from exec.LookPath on a configured tool name
		output, err := exec.Command(path, flag).Output()
		if err == nil {
			lines := strings.Split(string(output), "\n")
			return strings.TrimSpace(lines[0])
		}
	}
	return ""
}
