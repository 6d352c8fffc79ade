package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/plaenen/refactory/pkg/eventsourcing"
	"github.com/plaenen/refactory/pkg/factory"
	"google.golang.org/protobuf/types/known/structpb"
)

// Loader rebuilds a factory from its stored history.
type Loader interface {
	Load(ctx context.Context, id string) (*factory.Factory, error)
}

// Handler serves the factory procedures.
type Handler struct {
	bus              *eventsourcing.CommandBus
	loader           Loader
	defaultFactoryID string
	logger           *slog.Logger
	handlerOptions   []connect.HandlerOption
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithDefaultFactoryID is used for requests that name no factory.
func WithDefaultFactoryID(id string) HandlerOption {
	return func(h *Handler) {
		h.defaultFactoryID = id
	}
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithConnectOptions passes options to every connect handler.
func WithConnectOptions(opts ...connect.HandlerOption) HandlerOption {
	return func(h *Handler) {
		h.handlerOptions = append(h.handlerOptions, opts...)
	}
}

// NewHandler creates a handler sending commands through bus and reading
// factories through loader.
func NewHandler(bus *eventsourcing.CommandBus, loader Loader, opts ...HandlerOption) *Handler {
	h := &Handler{
		bus:              bus,
		loader:           loader,
		defaultFactoryID: "factory",
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the path prefix and handler to mount on a mux.
func (h *Handler) Routes() (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ProcedureAssignEmployee, connect.NewUnaryHandler(ProcedureAssignEmployee, h.assignEmployee, h.handlerOptions...))
	mux.Handle(ProcedureTransferShipmentToCargoBay, connect.NewUnaryHandler(ProcedureTransferShipmentToCargoBay, h.transferShipment, h.handlerOptions...))
	mux.Handle(ProcedureUnloadShipmentFromCargoBay, connect.NewUnaryHandler(ProcedureUnloadShipmentFromCargoBay, h.unloadShipment, h.handlerOptions...))
	mux.Handle(ProcedureProduceCar, connect.NewUnaryHandler(ProcedureProduceCar, h.produceCar, h.handlerOptions...))
	mux.Handle(ProcedureHistory, connect.NewUnaryHandler(ProcedureHistory, h.history, h.handlerOptions...))
	mux.Handle(ProcedureState, connect.NewUnaryHandler(ProcedureState, h.state, h.handlerOptions...))
	return "/" + ServiceName + "/", mux
}

func (h *Handler) assignEmployee(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	f := req.Msg.GetFields()
	return h.send(ctx, req, factory.AssignEmployee{EmployeeName: f["employee_name"].GetStringValue()})
}

func (h *Handler) transferShipment(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	f := req.Msg.GetFields()
	parts, err := decodeParts(f["parts"].GetListValue())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return h.send(ctx, req, factory.TransferShipmentToCargoBay{
		ShipmentName: f["shipment_name"].GetStringValue(),
		Parts:        parts,
	})
}

func (h *Handler) unloadShipment(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	f := req.Msg.GetFields()
	return h.send(ctx, req, factory.UnloadShipmentFromCargoBay{EmployeeName: f["employee_name"].GetStringValue()})
}

func (h *Handler) produceCar(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	f := req.Msg.GetFields()
	return h.send(ctx, req, factory.ProduceCar{
		EmployeeName: f["employee_name"].GetStringValue(),
		CarModel:     f["car_model"].GetStringValue(),
	})
}

func (h *Handler) send(ctx context.Context, req *connect.Request[structpb.Struct], cmd eventsourcing.Command) (*connect.Response[structpb.Struct], error) {
	env := eventsourcing.NewCommandEnvelope(h.factoryID(req.Msg), cmd).
		WithPrincipal(req.Header().Get(PrincipalHeader))

	events, err := h.bus.Send(ctx, env)
	published := true
	if errors.Is(err, eventsourcing.ErrPublishFailed) {
		h.logger.WarnContext(ctx, "events stored but not published",
			slog.String("command_id", env.Metadata.CommandID),
			slog.String("error", err.Error()),
		)
		published, err = false, nil
	}
	if err != nil {
		return nil, toConnectError(err)
	}

	views, err := EventViews(events)
	if err != nil {
		return nil, toConnectError(err)
	}
	msg, err := encodeResult(CommandResult{Events: views, Published: published})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(msg), nil
}

func (h *Handler) history(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	f, err := h.loader.Load(ctx, h.factoryID(req.Msg))
	if err != nil {
		return nil, toConnectError(err)
	}
	msg, err := structpb.NewStruct(map[string]any{
		"events": encodeEventViews(JournalViews(f.Journal().Events())),
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(msg), nil
}

func (h *Handler) state(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	f, err := h.loader.Load(ctx, h.factoryID(req.Msg))
	if err != nil {
		return nil, toConnectError(err)
	}
	msg, err := encodeState(StateOf(f))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(msg), nil
}

func (h *Handler) factoryID(msg *structpb.Struct) string {
	if id := msg.GetFields()["factory_id"].GetStringValue(); id != "" {
		return id
	}
	return h.defaultFactoryID
}

// StateOf describes the current state of f.
func StateOf(f *factory.Factory) StateView {
	s := f.State()
	return StateView{
		FactoryID:        f.ID(),
		Version:          f.Version(),
		Employees:        s.EmployeeNames(),
		PendingShipments: s.PendingShipmentCount(),
		UnloadedToday:    s.EmployeesUnloadedToday(),
		ProducedToday:    s.EmployeesProducedCarToday(),
		Inventory:        s.Inventory(),
	}
}
