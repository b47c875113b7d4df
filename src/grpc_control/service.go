package grpc_control

import (
	"context"
	"errors"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/scraper"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlService implements ControlServer on top of the pipeline service.
type ControlService struct {
	Service interfaces.IPipelineService
	Logger  *logger.Logger
}

// NewControlService creates a new instance of ControlService
func NewControlService(svc interfaces.IPipelineService, log *logger.Logger) *ControlService {
	return &ControlService{Service: svc, Logger: log}
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.Service.Status(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"name":               st.Name,
		"db_type":            st.DBType,
		"issuers":            st.Issuers,
		"sessions_idle":      st.SessionsIdle,
		"sessions_in_use":    st.SessionsInUse,
		"sessions_created":   st.SessionsCreated,
		"sessions_discarded": st.SessionsDiscarded,
		"uptime_seconds":     st.UptimeSeconds,
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) RefreshSymbols(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	codes, err := s.Service.RefreshSymbols(ctx)
	if err != nil {
		s.Logger.Error("gRPC: RefreshSymbols failed: %v", err)
		return nil, toStatus(err)
	}

	list := make([]interface{}, len(codes))
	for i, c := range codes {
		list[i] = c
	}
	s.Logger.Info("gRPC: RefreshSymbols stored %d issuers", len(codes))
	return structpb.NewStruct(map[string]interface{}{"count": len(codes), "codes": list})
}

// -----------------------------------------------------------------------------

// FetchSymbol expects {symbol, from_date, to_date[, save]}.
func (s *ControlService) FetchSymbol(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	symbol := fields["symbol"].GetStringValue()
	if symbol == "" {
		return nil, status.Error(codes.InvalidArgument, "symbol is required")
	}
	from, err := scraper.ParseDate(fields["from_date"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "from_date must be YYYY-MM-DD or M/D/YYYY")
	}
	to, err := scraper.ParseDate(fields["to_date"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "to_date must be YYYY-MM-DD or M/D/YYYY")
	}
	save := true
	if v, ok := fields["save"]; ok {
		save = v.GetBoolValue()
	}

	res, err := s.Service.FetchSymbol(ctx, symbol, from, to, save)
	if err != nil {
		s.Logger.Error("gRPC: FetchSymbol %s failed: %v", symbol, err)
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"symbol":        res.Symbol,
		"rows":          len(res.Report.Rows),
		"written":       res.Written,
		"chunks_total":  res.Report.ChunksTotal,
		"chunks_ok":     res.Report.ChunksOK,
		"chunks_empty":  res.Report.ChunksEmpty,
		"chunks_failed": res.Report.ChunksFailed,
	})
}

// -----------------------------------------------------------------------------

func toStatus(err error) error {
	var cfgErr *helpers.ConfigurationError
	switch {
	case helpers.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &cfgErr):
		return status.Error(codes.InvalidArgument, err.Error())
	case helpers.IsTimeout(err):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
