package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/fluxkit/component"
	"github.com/kbukum/fluxkit/observability"
)

// Summary prints what the application started with.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	pipelines       []string
	out             io.Writer
}

// NewSummary creates a new startup summary.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName: serviceName,
		version:     version,
		out:         os.Stdout,
	}
}

// SetOutput redirects the summary.
func (s *Summary) SetOutput(w io.Writer) { s.out = w }

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackPipeline records a pipeline the application runs, rendered with its
// String method.
func (s *Summary) TrackPipeline(p fmt.Stringer) {
	s.pipelines = append(s.pipelines, p.String())
}

// Display prints the summary including live health from the registry.
func (s *Summary) Display(ctx context.Context, registry *component.Registry) {
	w := s.out
	fmt.Fprintf(w, "\n%s v%s started in %.2fs\n\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if registry == nil {
		fmt.Fprintf(w, "   └── No components registered\n\n")
		return
	}

	descs := registry.Describe()
	if len(descs) == 0 {
		fmt.Fprintf(w, "   └── No components registered\n")
	} else {
		fmt.Fprintf(w, "Components\n")
		for i, d := range descs {
			line := d.Name
			if d.Type != "" {
				line += " [" + d.Type + "]"
			}
			if d.Details != "" {
				line += ": " + d.Details
			}
			fmt.Fprintf(w, "   %s %s\n", treePrefix(i, len(descs)), line)
		}
	}

	if len(s.pipelines) > 0 {
		fmt.Fprintf(w, "\nPipelines (%d)\n", len(s.pipelines))
		for i, p := range s.pipelines {
			fmt.Fprintf(w, "   %s %s\n", treePrefix(i, len(s.pipelines)), p)
		}
	}

	sh := observability.CheckRegistry(ctx, s.serviceName, s.version, registry)
	if health := sh.Components; len(health) > 0 {
		fmt.Fprintf(w, "\nHealth Check (%s)\n", sh.Status)
		for i, h := range health {
			msg := ""
			if h.Message != "" {
				msg = " - " + h.Message
			}
			fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(health)), healthStatusIcon(h.Status),
				h.Name, strings.ToLower(string(h.Status)), msg)
		}
	}
	fmt.Fprintf(w, "\n")
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
