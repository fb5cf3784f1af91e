package telemetry

import (
	"context"
	"net"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// buildResource creates the OpenTelemetry Resource every span produced
// in this process carries: service identity from cfg, a best-effort
// host.name, and any operator-supplied resource attributes.
func buildResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}

	if hostIP := resolveHostIP(); hostIP != "" {
		attrs = append(attrs, semconv.HostName(hostIP))
	}

	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

// resolveHostIP tries the local hostname resolved through DNS first,
// falling back to scanning network interfaces directly only if DNS
// came up empty.
func resolveHostIP() string {
	if ip := hostIPFromDNS(); ip != "" {
		return ip
	}
	return hostIPFromInterfaces()
}

// hostIPFromDNS resolves os.Hostname() and prefers an IPv4, non-
// loopback result; it returns "" rather than guessing if the lookup
// fails or every address it gets back is a loopback.
func hostIPFromDNS() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}

	addrs, err := net.LookupIP(hostname)
	if err != nil {
		return ""
	}

	for _, addr := range addrs {
		if ipv4 := addr.To4(); ipv4 != nil && !ipv4.IsLoopback() {
			return ipv4.String()
		}
	}
	for _, addr := range addrs {
		if !addr.IsLoopback() {
			return addr.String()
		}
	}
	return ""
}

// hostIPFromInterfaces returns the first IPv4, non-loopback address of
// the first up interface that has one.
func hostIPFromInterfaces() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if ipv4 := ip.To4(); ipv4 != nil {
				return ipv4.String()
			}
		}
	}

	return ""
}
