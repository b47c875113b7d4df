package grpc_control

import (
	"context"
	"net"
	"testing"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeService implements only what the control plane calls.
type fakeService struct {
	interfaces.IPipelineService
	fetched []time.Time
	save    bool
}

func (f *fakeService) Status(context.Context) (*models.MServiceStatus, error) {
	return &models.MServiceStatus{Name: "mse-pipeline", DBType: "sqlite", Issuers: 12}, nil
}

func (f *fakeService) RefreshSymbols(context.Context) ([]string, error) {
	return []string{"ALK", "KMB"}, nil
}

func (f *fakeService) FetchSymbol(_ context.Context, code string, from, to time.Time, save bool) (*models.MFetchResult, error) {
	if code == "NOPE" {
		return nil, helpers.NewNotFoundError("issuer NOPE not found")
	}
	f.fetched = []time.Time{from, to}
	f.save = save
	return &models.MFetchResult{Symbol: code, Written: 3, Report: models.MFetchReport{
		Rows: make([]models.MPriceRow, 4), ChunksTotal: 1, ChunksOK: 1,
	}}, nil
}

// -----------------------------------------------------------------------------

func dial(t *testing.T, svc interfaces.IPipelineService) *ControlClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterControlServer(srv, NewControlService(svc, nil))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewControlClient(conn)
}

func TestGetStatus(t *testing.T) {
	client := dial(t, &fakeService{})

	out, err := client.GetStatus(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "mse-pipeline", out.Fields["name"].GetStringValue())
	assert.Equal(t, float64(12), out.Fields["issuers"].GetNumberValue())
}

func TestRefreshSymbols(t *testing.T) {
	client := dial(t, &fakeService{})

	out, err := client.RefreshSymbols(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, float64(2), out.Fields["count"].GetNumberValue())
	assert.Len(t, out.Fields["codes"].GetListValue().GetValues(), 2)
}

func TestFetchSymbol(t *testing.T) {
	svc := &fakeService{}
	client := dial(t, svc)

	req, err := structpb.NewStruct(map[string]interface{}{
		"symbol": "ALK", "from_date": "1/1/2024", "to_date": "2024-01-31",
	})
	require.NoError(t, err)

	out, err := client.FetchSymbol(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, float64(4), out.Fields["rows"].GetNumberValue())
	assert.Equal(t, float64(3), out.Fields["written"].GetNumberValue())
	assert.True(t, svc.save)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), svc.fetched[1])
}

func TestFetchSymbolErrors(t *testing.T) {
	client := dial(t, &fakeService{})

	bad, _ := structpb.NewStruct(map[string]interface{}{"symbol": "ALK", "from_date": "soon"})
	_, err := client.FetchSymbol(context.Background(), bad)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	unknown, _ := structpb.NewStruct(map[string]interface{}{
		"symbol": "NOPE", "from_date": "2024-01-01", "to_date": "2024-01-02",
	})
	_, err = client.FetchSymbol(context.Background(), unknown)
	assert.Equal(t, codes.NotFound, status.Code(err))
}
