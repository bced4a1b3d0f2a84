package transport

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// serviceName and linkMethod name the single bidirectional-streaming RPC
// node pairs use to exchange envelopes. There is no api/proto package to
// generate a ServiceDesc from, so both are built by hand here, the way
// grpc-go's own codegen would have produced them for a one-RPC service
// with no unary methods.
const (
	serviceName = "thorium.transport.NodeLink"
	linkMethod  = "Link"
	linkFullMethod = "/" + serviceName + "/" + linkMethod
)

func init() {
	encoding.RegisterCodec(envelopeCodec{})
}

// nodeLinkServer is the interface the hand-built ServiceDesc dispatches
// to. *Transport implements it (transport.go).
type nodeLinkServer interface {
	link(stream grpc.ServerStream) error
}

func linkStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(nodeLinkServer).link(stream)
}

// nodeLinkServiceDesc describes the single-stream NodeLink service.
var nodeLinkServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*nodeLinkServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    linkMethod,
			Handler:       linkStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "pkg/transport/service.go",
}
