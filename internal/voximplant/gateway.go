package voximplant

import "context"

// GatewayClient is a stub adapter for a server-side softphone deployment.
//
// Planned integration:
// - Signaling over a WebSocket to the vendor edge (Connect/Login map onto
//   the wire handshake; AuthResult comes back as a signaling frame).
// - Media via a local RTP bridge; MediaElementCreated announces the sink.
// - Outbound Call maps to an INVITE with the extra headers as X-headers.
//
// IMPORTANT:
// - Keep this adapter free of session logic. It only translates vendor
//   frames into the Event/CallEvent unions; all decisions live in
//   internal/session.
type GatewayClient struct {
	handler EventHandler
}

func NewGatewayClient() *GatewayClient { return &GatewayClient{} }

func (g *GatewayClient) On(h EventHandler) { g.handler = h }

func (g *GatewayClient) Init(ctx context.Context, cfg InitConfig) error {
	if g.handler != nil {
		g.handler(SDKReady{})
	}
	return nil
}

func (g *GatewayClient) Connect(ctx context.Context) error { return nil }

func (g *GatewayClient) Login(ctx context.Context, userName, password string) error { return nil }

func (g *GatewayClient) LoginWithToken(ctx context.Context, userName, token string) error { return nil }

func (g *GatewayClient) Call(ctx context.Context, number string, headers map[string]string) (Call, error) {
	return nil, ErrNotInitialized
}

func (g *GatewayClient) Disconnect() {}
