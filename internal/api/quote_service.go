package api

import (
	"context"
	"strings"
	"time"

	"travelbook/internal/access"
	"travelbook/internal/domain"
	"travelbook/internal/models"
	"travelbook/internal/pricing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	quoteServiceName       = "travelbook.booking.v1.QuoteService"
	quoteFullMethod        = "/" + quoteServiceName + "/Quote"
	capabilitiesFullMethod = "/" + quoteServiceName + "/ResolveCapabilities"
	dateLayout             = "2006-01-02"
)

// Quoter prices a stay at a catalog service.
type Quoter interface {
	Quote(ctx context.Context, id string, checkIn, checkOut time.Time) (*models.Service, pricing.Breakdown, error)
}

// QuoteServer is the gRPC surface used by partner sites. Messages are
// google.protobuf.Struct so no generated code is needed.
type QuoteServer interface {
	Quote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ResolveCapabilities(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type QuoteService struct {
	catalog    Quoter
	identities domain.IdentityProvider
}

func NewQuoteService(catalog Quoter, identities domain.IdentityProvider) *QuoteService {
	return &QuoteService{catalog: catalog, identities: identities}
}

// Quote expects service_id, check_in and check_out (YYYY-MM-DD).
func (s *QuoteService) Quote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	serviceID := strings.TrimSpace(fields["service_id"].GetStringValue())
	if serviceID == "" {
		return nil, status.Error(codes.InvalidArgument, "service_id is required")
	}

	checkIn, err := time.Parse(dateLayout, fields["check_in"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid check_in; expected YYYY-MM-DD")
	}
	checkOut, err := time.Parse(dateLayout, fields["check_out"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid check_out; expected YYYY-MM-DD")
	}

	svc, b, err := s.catalog.Quote(ctx, serviceID, checkIn, checkOut)
	if err != nil {
		return nil, grpcError(err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"service_id":     svc.ID,
		"currency":       svc.Currency,
		"unit_price":     float64(b.UnitPrice),
		"nights":         float64(b.Nights),
		"weekend_nights": float64(b.WeekendNights),
		"peak_season":    b.PeakSeason,
		"subtotal":       float64(b.Subtotal),
		"total":          float64(b.Total),
		"total_display":  b.Total.Format(svc.Currency),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return resp, nil
}

// ResolveCapabilities expects identity_id; an empty id resolves to Guest and
// an id the store does not know is refused as unknown_identity.
func (s *QuoteService) ResolveCapabilities(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	identityID := strings.TrimSpace(req.GetFields()["identity_id"].GetStringValue())

	var identity *models.Identity
	if identityID != "" {
		var err error
		identity, err = s.identities.GetIdentity(ctx, identityID)
		if err != nil {
			return nil, grpcError(domain.Wrap(domain.ErrIdentityFetch, err))
		}
		if identity == nil {
			return nil, grpcError(domain.ErrUnknownIdentity)
		}
	}

	caps := access.Resolve(identity).List()
	list := make([]any, 0, len(caps))
	for _, c := range caps {
		list = append(list, string(c))
	}

	resp, err := structpb.NewStruct(map[string]any{
		"identity_id":  identityID,
		"capabilities": list,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return resp, nil
}

// QuoteServiceDesc is registered with grpc.Server.RegisterService.
var QuoteServiceDesc = grpc.ServiceDesc{
	ServiceName: quoteServiceName,
	HandlerType: (*QuoteServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Quote", Handler: quoteHandler},
		{MethodName: "ResolveCapabilities", Handler: capabilitiesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "travelbook/booking/v1/quote.proto",
}

func quoteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QuoteServer).Quote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: quoteFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QuoteServer).Quote(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func capabilitiesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QuoteServer).ResolveCapabilities(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: capabilitiesFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QuoteServer).ResolveCapabilities(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
