package server

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// displayServerInfo prints the endpoints and access limits on stderr
func (s *Server) displayServerInfo() {
	s.writeServerInfo(os.Stderr)
}

func (s *Server) writeServerInfo(w io.Writer) {
	fmt.Fprintln(w, "Available endpoints:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, rt := range apiRoutes {
		method, path, _ := strings.Cut(rt.pattern, " ")
		note := ""
		if rt.protected && len(s.APIKeys) > 0 {
			note = " (requires API key)"
		}
		fmt.Fprintf(tw, "  %s\t%s\t- %s%s\n", method, path, rt.summary, note)
	}
	_ = tw.Flush()

	if len(s.APIKeys) > 0 {
		fmt.Fprintf(w, "API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
		fmt.Fprintln(w, "Send 'X-API-Key: <your-key>' or 'Authorization: Bearer <your-key>' with POST requests")
	} else {
		fmt.Fprintln(w, "API authentication: DISABLED (no API keys configured)")
		fmt.Fprintln(w, "WARNING: API endpoints are publicly accessible!")
	}

	if s.MaxRequestSize > 0 {
		fmt.Fprintf(w, "Request size limit: %d bytes (%.1f MB), %d per text field\n",
			s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024), s.MaxRequestSize/2)
	} else {
		fmt.Fprintln(w, "Request size limit: DISABLED")
	}

	if s.RateLimit == nil || !s.RateLimit.Enabled {
		fmt.Fprintln(w, "Rate limiting: DISABLED")
		return
	}
	var keyedBy []string
	if s.RateLimit.ByAPIKey {
		keyedBy = append(keyedBy, "API key")
	}
	if s.RateLimit.ByIP {
		keyedBy = append(keyedBy, "client IP")
	}
	fmt.Fprintf(w, "Rate limiting: ENABLED (%d model calls/min, burst %d, per %s)\n",
		s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity, strings.Join(keyedBy, " then "))
	fmt.Fprintf(w, "  /process costs %d calls, /extract %d, /gaps and /questionnaire 1\n",
		endpointCost["/process"], endpointCost["/extract"])
}
