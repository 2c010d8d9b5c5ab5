package runtime

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"

	appconfig "github.com/saker-ai/robodog-server/internal/config"
)

const panelPath = "/index.html"

// listen serves plain HTTP or HTTPS. Browsers only grant the panel's
// microphone on a secure origin, so the reachable panel URLs are logged.
func listen(server *http.Server, cfg appconfig.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	hosts := panelHosts(cfg.SystemConfig.Host, lanIPs())

	if cfg.TLSDisable {
		logger.Info("starting http server",
			zap.String("addr", cfg.HTTPAddr),
			zap.Strings("panel_urls", panelURLs("http", cfg.HTTPAddr, hosts)),
		)
		logger.Info("microphone in the panel only works from localhost without tls")
		return server.ListenAndServe()
	}

	urls := panelURLs("https", cfg.HTTPAddr, hosts)
	certPath := filepath.Clean(cfg.TLSCertPath)
	keyPath := filepath.Clean(cfg.TLSKeyPath)
	certExists := fileExists(certPath)
	keyExists := fileExists(keyPath)

	if certExists && keyExists {
		logger.Info("starting https server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("cert", certPath),
			zap.Strings("panel_urls", urls),
		)
		return server.ListenAndServeTLS(certPath, keyPath)
	}

	if cfg.TLSRequired {
		var missing []string
		if !certExists {
			missing = append(missing, certPath)
		}
		if !keyExists {
			missing = append(missing, keyPath)
		}
		logger.Warn("tls required but certs missing; using in-memory cert", zap.Strings("missing", missing))
	}

	cert, err := generateSelfSignedCert(hosts)
	if err != nil {
		return fmt.Errorf("generate robodog tls cert: %w", err)
	}
	server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	logger.Info("starting https server with self-signed cert; accept the browser warning once per url",
		zap.String("addr", cfg.HTTPAddr),
		zap.Strings("panel_urls", urls),
	)
	return server.ListenAndServeTLS("", "")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// certHosts are the names a browser may use to reach the robot.
type certHosts struct {
	dnsNames []string
	ips      []net.IP
}

// panelHosts always includes loopback. A configured wildcard host means
// every LAN address; a concrete one is added as an IP or DNS name.
func panelHosts(host string, lan []net.IP) certHosts {
	h := certHosts{
		dnsNames: []string{"localhost"},
		ips:      []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	switch host {
	case "", "0.0.0.0", "::":
		for _, ip := range lan {
			h.ips = appendIP(h.ips, ip)
		}
	default:
		if ip := net.ParseIP(host); ip != nil {
			h.ips = appendIP(h.ips, ip)
		} else if !slices.Contains(h.dnsNames, host) {
			h.dnsNames = append(h.dnsNames, host)
		}
	}
	return h
}

// panelURLs lists the panel on every non-loopback host first, then on
// localhost. IPv6 link-local addresses are skipped since browsers reject them.
func panelURLs(scheme, addr string, hosts certHosts) []string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		port = "8000"
	}
	var urls []string
	for _, ip := range hosts.ips {
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		urls = append(urls, fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(ip.String(), port), panelPath))
	}
	for _, name := range hosts.dnsNames {
		if name == "localhost" {
			continue
		}
		urls = append(urls, fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(name, port), panelPath))
	}
	return append(urls, fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort("localhost", port), panelPath))
}

func lanIPs() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	var ips []net.IP
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsUnspecified() || ip.IsLoopback() {
			continue
		}
		ips = appendIP(ips, ip)
	}
	return ips
}

func generateSelfSignedCert(hosts certHosts) (tls.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}
	notBefore := time.Now().Add(-time.Minute)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "robodog-local",
			Organization: []string{"robodog"},
		},
		NotBefore:   notBefore,
		NotAfter:    notBefore.Add(365 * 24 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:    hosts.dnsNames,
		IPAddresses: hosts.ips,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	)
}

func appendIP(list []net.IP, ip net.IP) []net.IP {
	for _, existing := range list {
		if existing.Equal(ip) {
			return list
		}
	}
	return append(list, ip)
}
