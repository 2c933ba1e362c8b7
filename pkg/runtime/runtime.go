package runtime

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumivoice/voice-gateway/internal/agent"
	appconfig "github.com/lumivoice/voice-gateway/internal/config"
	"github.com/lumivoice/voice-gateway/internal/conversation"
	apphttp "github.com/lumivoice/voice-gateway/internal/http"
	applogger "github.com/lumivoice/voice-gateway/internal/logger"
	"github.com/lumivoice/voice-gateway/internal/ws"
	"github.com/lumivoice/voice-gateway/pkg/assistant"
)

// Options customizes the embedded gateway. Every field is optional.
type Options struct {
	// ConfigPath points at a conf.yaml; empty uses the default search.
	ConfigPath string
	// Generator produces assistant replies. When nil, a relay to the
	// configured backend is used, or the echo generator if no backend
	// URL is configured.
	Generator agent.Generator
	// Tools executes tool calls emitted by the generator.
	Tools agent.ToolExecutor
	// Transcriber and Synthesizer enable the voice path.
	Transcriber ws.Transcriber
	Synthesizer ws.Synthesizer
}

// Server is the embeddable gateway: config, logger, agent engine, and
// the HTTP/websocket front end.
type Server struct {
	cfg     appconfig.Config
	logger  *zap.Logger
	server  *http.Server
	backend *assistant.Client
}

// New assembles a gateway from the given options.
func New(opts Options) (*Server, error) {
	cfg, err := appconfig.LoadFile(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
	}

	logger, err := applogger.New(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	logger.Info("gateway config loaded",
		zap.String("config_path", opts.ConfigPath),
		zap.String("root_dir", cfg.RootDir),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("backend_url", cfg.Backend.URL),
	)

	tools := opts.Tools
	if tools == nil {
		tools = agent.NewRegistryExecutor()
	}

	var backendClient *assistant.Client
	generator := opts.Generator
	if generator == nil {
		if cfg.Backend.URL != "" {
			backendClient = assistant.NewClient(assistant.Config{
				BackendURL:  cfg.Backend.URL,
				ClientID:    cfg.Backend.ClientID,
				DeviceID:    cfg.Backend.DeviceID,
				AccessToken: cfg.Backend.AccessToken,
				DialTimeout: cfg.Backend.DialTimeout(),
			}, assistant.Callbacks{}, logger)
			generator = agent.NewBackendGenerator(backendClient, logger)
		} else {
			logger.Warn("no generator and no backend url configured; using echo generator")
			generator = agent.EchoGenerator{}
		}
	}

	engine := agent.NewEngine(generator, tools, logger)
	store := conversation.NewStore(cfg.ConversationsDir)
	wsHandler := ws.NewHandler(logger, cfg, engine, store, opts.Transcriber, opts.Synthesizer)
	router := apphttp.NewRouter(cfg, wsHandler, store, logger)

	return &Server{
		cfg:    cfg,
		logger: logger,
		server: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: router,
		},
		backend: backendClient,
	}, nil
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	if s == nil || s.server == nil {
		return nil
	}
	if s.backend != nil {
		s.backend.Start()
	}

	err := listen(s.server, s.cfg, s.logger)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Logger exposes the gateway logger for embedders.
func (s *Server) Logger() *zap.Logger {
	if s == nil {
		return zap.NewNop()
	}
	return s.logger
}

// Shutdown stops the backend transport and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	if s.backend != nil {
		s.backend.Stop()
	}
	return ignoreServerClosed(s.server.Shutdown(ctx))
}

func ignoreServerClosed(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func listen(server *http.Server, cfg appconfig.Config, logger *zap.Logger) error {
	if cfg.TLSDisable {
		if logger != nil {
			logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
		}
		return server.ListenAndServe()
	}

	certPath := filepath.Clean(cfg.TLSCertPath)
	keyPath := filepath.Clean(cfg.TLSKeyPath)
	certExists := fileExists(certPath)
	keyExists := fileExists(keyPath)

	if certExists && keyExists {
		if logger != nil {
			logger.Info("starting https server", zap.String("addr", cfg.HTTPAddr))
		}
		return server.ListenAndServeTLS(certPath, keyPath)
	}

	if cfg.TLSRequired {
		missing := []string{}
		if !certExists {
			missing = append(missing, certPath)
		}
		if !keyExists {
			missing = append(missing, keyPath)
		}
		if logger != nil {
			logger.Warn("tls required but certs missing; using in-memory cert", zap.Strings("missing", missing))
		}
	}

	cert, err := generateSelfSignedCert(cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to generate tls cert: %w", err)
	}
	server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	if logger != nil {
		logger.Info("starting https server with in-memory cert", zap.String("addr", cfg.HTTPAddr))
	}
	return server.ListenAndServeTLS("", "")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func generateSelfSignedCert(host string) (tls.Certificate, error) {
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}

	notBefore := time.Now().Add(-time.Minute)
	notAfter := notBefore.Add(365 * 24 * time.Hour)

	dnsNames := []string{"localhost"}
	ipAddresses := []net.IP{
		net.ParseIP("127.0.0.1"),
		net.ParseIP("::1"),
	}

	if host != "" && host != "0.0.0.0" && host != "::" {
		if ip := net.ParseIP(host); ip != nil {
			ipAddresses = appendIP(ipAddresses, ip)
		} else {
			dnsNames = append(dnsNames, host)
		}
	}

	ifaces, _ := net.InterfaceAddrs()
	for _, addr := range ifaces {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsUnspecified() {
			continue
		}
		ipAddresses = appendIP(ipAddresses, ip)
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   "voice-gateway-local",
			Organization: []string{"lumivoice"},
		},
		NotBefore:   notBefore,
		NotAfter:    notAfter,
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:    uniqueStrings(dnsNames),
		IPAddresses: uniqueIPs(ipAddresses),
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	keyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})

	return tls.X509KeyPair(certPEM, keyPEM)
}

func appendIP(list []net.IP, ip net.IP) []net.IP {
	for _, existing := range list {
		if existing.Equal(ip) {
			return list
		}
	}
	return append(list, ip)
}

func uniqueIPs(list []net.IP) []net.IP {
	unique := make([]net.IP, 0, len(list))
	for _, ip := range list {
		if ip == nil {
			continue
		}
		unique = appendIP(unique, ip)
	}
	return unique
}

func uniqueStrings(list []string) []string {
	unique := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, item := range list {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}
