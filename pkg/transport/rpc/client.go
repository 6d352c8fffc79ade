package rpc

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/plaenen/refactory/pkg/factory"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote factory service. Rejections come back as
// *factory.Rejection values.
type Client struct {
	assign    *connect.Client[structpb.Struct, structpb.Struct]
	transfer  *connect.Client[structpb.Struct, structpb.Struct]
	unload    *connect.Client[structpb.Struct, structpb.Struct]
	produce   *connect.Client[structpb.Struct, structpb.Struct]
	history   *connect.Client[structpb.Struct, structpb.Struct]
	state     *connect.Client[structpb.Struct, structpb.Struct]
	principal string
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	principal      string
	connectOptions []connect.ClientOption
}

// WithPrincipal sends principal with every command.
func WithPrincipal(principal string) ClientOption {
	return func(c *clientConfig) {
		c.principal = principal
	}
}

// WithClientOptions passes options to the connect clients.
func WithClientOptions(opts ...connect.ClientOption) ClientOption {
	return func(c *clientConfig) {
		c.connectOptions = append(c.connectOptions, opts...)
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...ClientOption) *Client {
	var config clientConfig
	for _, opt := range opts {
		opt(&config)
	}

	baseURL = strings.TrimRight(baseURL, "/")
	newClient := func(procedure string) *connect.Client[structpb.Struct, structpb.Struct] {
		return connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+procedure, config.connectOptions...)
	}

	return &Client{
		assign:    newClient(ProcedureAssignEmployee),
		transfer:  newClient(ProcedureTransferShipmentToCargoBay),
		unload:    newClient(ProcedureUnloadShipmentFromCargoBay),
		produce:   newClient(ProcedureProduceCar),
		history:   newClient(ProcedureHistory),
		state:     newClient(ProcedureState),
		principal: config.principal,
	}
}

// AssignEmployee assigns an employee to the factory.
func (c *Client) AssignEmployee(ctx context.Context, factoryID, employeeName string) (CommandResult, error) {
	return c.command(ctx, c.assign, map[string]any{
		"factory_id":    factoryID,
		"employee_name": employeeName,
	})
}

// TransferShipmentToCargoBay hands a shipment to the factory.
func (c *Client) TransferShipmentToCargoBay(ctx context.Context, factoryID, shipmentName string, parts ...factory.CarPart) (CommandResult, error) {
	return c.command(ctx, c.transfer, map[string]any{
		"factory_id":    factoryID,
		"shipment_name": shipmentName,
		"parts":         encodeParts(parts),
	})
}

// UnloadShipmentFromCargoBay asks an employee to unload the cargo bay.
func (c *Client) UnloadShipmentFromCargoBay(ctx context.Context, factoryID, employeeName string) (CommandResult, error) {
	return c.command(ctx, c.unload, map[string]any{
		"factory_id":    factoryID,
		"employee_name": employeeName,
	})
}

// ProduceCar asks an employee to build a car.
func (c *Client) ProduceCar(ctx context.Context, factoryID, employeeName, carModel string) (CommandResult, error) {
	return c.command(ctx, c.produce, map[string]any{
		"factory_id":    factoryID,
		"employee_name": employeeName,
		"car_model":     carModel,
	})
}

// History returns the factory's journal.
func (c *Client) History(ctx context.Context, factoryID string) ([]EventView, error) {
	res, err := c.call(ctx, c.history, map[string]any{"factory_id": factoryID})
	if err != nil {
		return nil, err
	}
	return decodeEventViews(res.GetFields()["events"].GetListValue()), nil
}

// State returns the factory's current state.
func (c *Client) State(ctx context.Context, factoryID string) (StateView, error) {
	res, err := c.call(ctx, c.state, map[string]any{"factory_id": factoryID})
	if err != nil {
		return StateView{}, err
	}
	return decodeState(res), nil
}

func (c *Client) command(ctx context.Context, client *connect.Client[structpb.Struct, structpb.Struct], fields map[string]any) (CommandResult, error) {
	res, err := c.call(ctx, client, fields)
	if err != nil {
		return CommandResult{}, err
	}
	return decodeResult(res), nil
}

func (c *Client) call(ctx context.Context, client *connect.Client[structpb.Struct, structpb.Struct], fields map[string]any) (*structpb.Struct, error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	req := connect.NewRequest(msg)
	if c.principal != "" {
		req.Header().Set(PrincipalHeader, c.principal)
	}
	res, err := client.CallUnary(ctx, req)
	if err != nil {
		return nil, fromConnectError(err)
	}
	return res.Msg, nil
}
