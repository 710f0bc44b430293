package node

import (
	"context"
	"net/http"

	"github.com/continuity-consensus/core/gossip"
)

// gossipServerService adapts the gossip TCP listener into a Service so its
// bring-up can be ordered and health-checked through the node's
// ServiceRegistry instead of being started ad hoc in Node.Start.
type gossipServerService struct {
	node *Node
}

func (s *gossipServerService) Name() string { return "gossip-server" }

func (s *gossipServerService) Start() error {
	srv, err := gossip.ListenTCP(s.node.config.GossipAddr(), s.node.store)
	if err != nil {
		return err
	}
	s.node.tcpServer = srv
	s.node.logger.Info("gossip server listening", "addr", srv.Addr().String())
	return nil
}

func (s *gossipServerService) Stop() error {
	if s.node.tcpServer == nil {
		return nil
	}
	return s.node.tcpServer.Close()
}

func (s *gossipServerService) healthy() bool {
	return s.node.tcpServer != nil
}

// rpcServerService adapts the status/ops HTTP-RPC endpoint into a Service.
// It depends on gossip-server so the node never advertises status over RPC
// before the transport peers dial into is actually listening.
type rpcServerService struct {
	node *Node
}

func (s *rpcServerService) Name() string { return "rpc-server" }

func (s *rpcServerService) Start() error {
	n := s.node
	mux := http.NewServeMux()
	mux.Handle("/", n.rpc)
	if n.config.Metrics {
		mux.Handle("/metrics", n.exporter.Handler())
	}

	n.rpcServer = &http.Server{
		Addr:    n.config.RPCAddr(),
		Handler: mux,
	}
	go func() {
		if err := n.rpcServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			n.logger.Error("rpc server error", "err", err)
		}
	}()
	n.logger.Info("rpc server listening", "addr", n.config.RPCAddr())
	return nil
}

func (s *rpcServerService) Stop() error {
	if s.node.rpcServer == nil {
		return nil
	}
	return s.node.rpcServer.Shutdown(context.Background())
}

func (s *rpcServerService) healthy() bool {
	return s.node.rpcServer != nil
}

// registerNetServices wires the gossip transport and RPC endpoint into the
// node's network service registry, declaring rpc-server's dependency on
// gossip-server explicitly rather than relying on call order.
func (n *Node) registerNetServices() error {
	gsvc := &gossipServerService{node: n}
	if err := n.netServices.Register(&ServiceDescriptor{
		Name:     gsvc.Name(),
		Service:  gsvc,
		Priority: 0,
		HealthFn: gsvc.healthy,
	}); err != nil {
		return err
	}

	rsvc := &rpcServerService{node: n}
	if err := n.netServices.Register(&ServiceDescriptor{
		Name:         rsvc.Name(),
		Service:      rsvc,
		Dependencies: []string{"gossip-server"},
		Priority:     0,
		HealthFn:     rsvc.healthy,
	}); err != nil {
		return err
	}
	return nil
}
