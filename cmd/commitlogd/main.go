// Command commitlogd hosts a single log.Log behind the gRPC service in
// internal/server. It is the thinnest possible process wrapper around the
// core engine: parse flags, open the log, serve.
package main

import (
	"flag"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/openlogio/commitlog/internal/auth"
	"github.com/openlogio/commitlog/internal/config"
	"github.com/openlogio/commitlog/internal/log"
	"github.com/openlogio/commitlog/internal/server"
)

func main() {
	addr := flag.String("addr", ":8400", "address to listen on")
	dataDir := flag.String("data-dir", "/var/lib/commitlogd", "directory the log is rooted at")
	maxStoreBytes := flag.Uint64("max-store-bytes", 0, "segment store byte cap (0: default)")
	maxIndexEntries := flag.Uint64("max-index-entries", 0, "segment index entry cap (0: default)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	var logConfig log.Config
	logConfig.Segment.MaxStoreBytes = *maxStoreBytes
	logConfig.Segment.MaxIndexEntries = *maxIndexEntries

	clog, err := log.NewLog(*dataDir, logConfig)
	if err != nil {
		logger.Fatal("open log", zap.Error(err))
	}

	authorizer, err := auth.New(config.ACLModelFile, config.ACLPolicyFile)
	if err != nil {
		logger.Fatal("load authorizer", zap.Error(err))
	}

	tlsConfig, err := config.SetupTLSConfig(config.TLSConfig{
		CertFile: config.ServerCertFile,
		KeyFile:  config.ServerKeyFile,
		CAFile:   config.CAFile,
		Server:   true,
	})
	if err != nil {
		logger.Fatal("load TLS config", zap.Error(err))
	}

	gsrv, err := server.NewGRPCServer(
		server.Config{CommitLog: clog, Authorizer: authorizer},
		grpc.Creds(credentials.NewTLS(tlsConfig)),
	)
	if err != nil {
		logger.Fatal("build grpc server", zap.Error(err))
	}

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	logger.Info("commitlogd listening", zap.String("addr", *addr), zap.String("data_dir", *dataDir))
	if err := gsrv.Serve(lis); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}
