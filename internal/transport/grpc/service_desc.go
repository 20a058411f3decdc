package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	serviceName = "bookings.v1.AppointmentsService"

	ListAppointmentsMethod  = "/" + serviceName + "/ListAppointments"
	CreateAppointmentMethod = "/" + serviceName + "/CreateAppointment"
	CancelAppointmentMethod = "/" + serviceName + "/CancelAppointment"
)

type AppointmentsServiceServer interface {
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	CreateAppointment(context.Context, *CreateAppointmentRequest) (*CreateAppointmentResponse, error)
	CancelAppointment(context.Context, *CancelAppointmentRequest) (*CancelAppointmentResponse, error)
}

func RegisterAppointmentsServiceServer(s grpc.ServiceRegistrar, srv AppointmentsServiceServer) {
	s.RegisterService(&appointmentsServiceDesc, srv)
}

var appointmentsServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AppointmentsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListAppointments", Handler: listAppointmentsHandler},
		{MethodName: "CreateAppointment", Handler: createAppointmentHandler},
		{MethodName: "CancelAppointment", Handler: cancelAppointmentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bookings/v1/appointments.json",
}

func listAppointmentsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListAppointmentsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AppointmentsServiceServer).ListAppointments(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListAppointmentsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AppointmentsServiceServer).ListAppointments(ctx, req.(*ListAppointmentsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func createAppointmentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateAppointmentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AppointmentsServiceServer).CreateAppointment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CreateAppointmentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AppointmentsServiceServer).CreateAppointment(ctx, req.(*CreateAppointmentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func cancelAppointmentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CancelAppointmentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AppointmentsServiceServer).CancelAppointment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CancelAppointmentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AppointmentsServiceServer).CancelAppointment(ctx, req.(*CancelAppointmentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// AppointmentsClient calls the service over a connection using the JSON codec.
type AppointmentsClient struct {
	cc grpc.ClientConnInterface
}

func NewAppointmentsClient(cc grpc.ClientConnInterface) *AppointmentsClient {
	return &AppointmentsClient{cc: cc}
}

func (c *AppointmentsClient) ListAppointments(ctx context.Context, in *ListAppointmentsRequest, opts ...grpc.CallOption) (*ListAppointmentsResponse, error) {
	out := new(ListAppointmentsResponse)
	if err := c.cc.Invoke(ctx, ListAppointmentsMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AppointmentsClient) CreateAppointment(ctx context.Context, in *CreateAppointmentRequest, opts ...grpc.CallOption) (*CreateAppointmentResponse, error) {
	out := new(CreateAppointmentResponse)
	if err := c.cc.Invoke(ctx, CreateAppointmentMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AppointmentsClient) CancelAppointment(ctx context.Context, in *CancelAppointmentRequest, opts ...grpc.CallOption) (*CancelAppointmentResponse, error) {
	out := new(CancelAppointmentResponse)
	if err := c.cc.Invoke(ctx, CancelAppointmentMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
