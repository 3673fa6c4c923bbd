package grpcserver

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/dynamicpb"

	"rtl-testgen/internal/models"
)

// Client calls TestGeneratorService. Calls use protobuf unless the dial options
// select JSONSubtype.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a plaintext client for target. Extra options are applied after the defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	defaults := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	conn, err := grpc.NewClient(target, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) GenerateTest(ctx context.Context, req models.TestRequest, opts ...grpc.CallOption) (*models.TestResponse, error) {
	out := dynamicpb.NewMessage(responseDesc)
	if err := c.conn.Invoke(ctx, generateTestMethod, newRequestMessage(req), out, opts...); err != nil {
		return nil, err
	}
	resp := responseFromMessage(out)
	return &resp, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
