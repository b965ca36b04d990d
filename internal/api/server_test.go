package api

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"

	"travelbook/internal/config"
	"travelbook/internal/models"
	"travelbook/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type identityMap map[string]*models.Identity

func (m identityMap) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	if id == "broken" {
		return nil, errors.New("database is locked")
	}
	return m[id], nil
}

func startGRPC(t *testing.T, cfg *config.APIConfig) *grpc.ClientConn {
	t.Helper()

	catalog, err := service.NewCatalogService([]models.Service{villa()}, testLogger())
	require.NoError(t, err)

	identities := identityMap{
		"admin-1": {ID: "admin-1", Role: models.RoleAdmin},
		"lan":     {ID: "lan", Role: models.RoleTraveller},
	}

	srv, err := newGRPCServer(cfg, catalog, identities, testLogger())
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.serve(lis) }()
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func call(ctx context.Context, conn *grpc.ClientConn, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	err = conn.Invoke(ctx, method, in, out)
	return out, err
}

func TestGRPCQuote(t *testing.T) {
	conn := startGRPC(t, &config.APIConfig{Enabled: true})
	ctx := context.Background()

	t.Run("peak weekend", func(t *testing.T) {
		out, err := call(ctx, conn, quoteFullMethod, map[string]any{
			"service_id": "villa-1", "check_in": "2025-12-12", "check_out": "2025-12-15",
		})
		require.NoError(t, err)
		fields := out.GetFields()
		assert.Equal(t, float64(5_100_000), fields["total"].GetNumberValue())
		assert.Equal(t, float64(2), fields["weekend_nights"].GetNumberValue())
		assert.True(t, fields["peak_season"].GetBoolValue())
		assert.Equal(t, "5,100,000 VND", fields["total_display"].GetStringValue())
	})

	t.Run("unknown service", func(t *testing.T) {
		_, err := call(ctx, conn, quoteFullMethod, map[string]any{
			"service_id": "nope", "check_in": "2025-12-12", "check_out": "2025-12-15",
		})
		assert.Equal(t, codes.NotFound, status.Code(err))
		assert.Equal(t, "service_not_found", status.Convert(err).Message())
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := call(ctx, conn, quoteFullMethod, map[string]any{
			"service_id": "villa-1", "check_in": "tomorrow", "check_out": "2025-12-15",
		})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}

func TestGRPCResolveCapabilities(t *testing.T) {
	conn := startGRPC(t, &config.APIConfig{Enabled: true})
	ctx := context.Background()

	tests := []struct {
		name     string
		identity string
		want     []any
		code     codes.Code
		reason   string
	}{
		{"guest", "", []any{"Guest"}, codes.OK, ""},
		{"traveller", "lan", []any{"Traveller"}, codes.OK, ""},
		{"admin", "admin-1", []any{"Admin"}, codes.OK, ""},
		{"unknown", "ghost", nil, codes.PermissionDenied, "unknown_identity"},
		{"store down", "broken", nil, codes.Unavailable, "identity_fetch_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := call(ctx, conn, capabilitiesFullMethod, map[string]any{"identity_id": tt.identity})
			require.Equal(t, tt.code, status.Code(err))
			if tt.reason != "" {
				assert.Equal(t, tt.reason, status.Convert(err).Message())
			}
			if tt.code == codes.OK {
				assert.Equal(t, tt.want, out.GetFields()["capabilities"].GetListValue().AsSlice())
			}
		})
	}
}

func TestGRPCAuth(t *testing.T) {
	conn := startGRPC(t, &config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "partner", Extra: "secret", Permissions: []string{permReadQuotes}},
			},
		},
	})

	quote := map[string]any{"service_id": "villa-1", "check_in": "2025-01-06", "check_out": "2025-01-07"}

	_, err := call(context.Background(), conn, quoteFullMethod, quote)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "partner", "x-api-extra", "secret")
	_, err = call(ctx, conn, quoteFullMethod, quote)
	assert.NoError(t, err)

	_, err = call(ctx, conn, capabilitiesFullMethod, map[string]any{})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	// health is reachable without keys
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: quoteServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestBuildTLSConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.APITLSConfig
	}{
		{"missing keypair", config.APITLSConfig{Enabled: true}},
		{"unreadable keypair", config.APITLSConfig{Enabled: true, CertFile: "nope.crt", KeyFile: "nope.key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildTLSConfig(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestLoadCertPoolRejectsGarbage(t *testing.T) {
	path := t.TempDir() + "/ca.pem"
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	_, err := loadCertPool(path)
	assert.ErrorContains(t, err, "no certificates")
}
