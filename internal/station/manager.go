package station

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ruslanhut/ocpp-emu/internal/ocpp"
	"github.com/ruslanhut/ocpp-emu/internal/ocpp/v201"
	"github.com/ruslanhut/ocpp-emu/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Manager manages all charging stations and routes the v201.Handler's
// device-model callbacks to the right station.
type Manager struct {
	stations map[string]*Station
	mu       sync.RWMutex

	db      *storage.MongoDBClient
	store   v201.ConfigurationKeyStore
	handler *v201.Handler
	logger  *slog.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	syncInterval time.Duration
	syncWg       sync.WaitGroup

	deviceModelDefaults DeviceModelDefaults

	// SendMessage transmits a framed OCPP message to a connected station's
	// transport. Wired by cmd/server once a transport is chosen.
	SendMessage func(stationID string, data []byte) error
}

// ManagerConfig represents the manager configuration.
type ManagerConfig struct {
	SyncInterval time.Duration // How often to sync station config to MongoDB

	// DeviceModelDefaults seeds each newly added station's ItemsPerMessage/
	// BytesPerMessage configuration keys before its startup self-check runs,
	// so a deployment's config.yaml overrides the registry's own hardcoded
	// defaults. Zero values leave the registry defaults in place.
	DeviceModelDefaults DeviceModelDefaults
}

// DeviceModelDefaults mirrors config.DeviceModelConfig without importing the
// config package from station, keeping the dependency direction one-way.
type DeviceModelDefaults struct {
	ItemsPerMessage int
	BytesPerMessage int
}

// NewManager creates a new station manager. db may be nil for a process that
// keeps stations in memory only.
func NewManager(db *storage.MongoDBClient, store v201.ConfigurationKeyStore, logger *slog.Logger, config ManagerConfig) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	if config.SyncInterval == 0 {
		config.SyncInterval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		stations:            make(map[string]*Station),
		db:                  db,
		store:               store,
		logger:              logger,
		ctx:                 ctx,
		cancel:              cancel,
		syncInterval:        config.SyncInterval,
		deviceModelDefaults: config.DeviceModelDefaults,
	}

	m.handler = v201.NewHandler(logger)
	m.handler.OnGetVariables = m.dispatchGetVariables
	m.handler.OnSetVariables = m.dispatchSetVariables
	m.handler.OnGetBaseReport = m.dispatchGetBaseReport
	m.handler.SendMessage = func(stationID string, data []byte) error {
		if m.SendMessage == nil {
			return fmt.Errorf("no transport wired for station %s", stationID)
		}
		return m.SendMessage(stationID, data)
	}

	return m
}

// Handler returns the shared v201 protocol handler every station's messages
// flow through.
func (m *Manager) Handler() *v201.Handler {
	return m.handler
}

// HandleIncoming decodes one wire frame arriving on a station's transport
// and, for Call frames, routes it to the protocol handler and returns the
// encoded reply. CallResult/CallError frames answer requests this process
// sent earlier and produce no reply here.
func (m *Manager) HandleIncoming(stationID string, data []byte) ([]byte, error) {
	msg, err := ocpp.ParseFrame(data)
	if err != nil {
		return nil, fmt.Errorf("malformed frame from station %s: %w", stationID, err)
	}

	call, ok := msg.(*ocpp.Call)
	if !ok {
		m.logger.Debug("ignoring non-Call frame", "stationId", stationID)
		return nil, nil
	}

	payload, err := m.handler.HandleCall(stationID, call)
	if err != nil {
		m.logger.Warn("call handling failed", "stationId", stationID, "action", call.Action, "error", err)
		return ocpp.NewCallError(call.UniqueID, ocpp.ErrorCodeNotImplemented, err.Error()).ToBytes()
	}

	result, err := ocpp.NewCallResult(call.UniqueID, payload)
	if err != nil {
		return ocpp.NewCallError(call.UniqueID, ocpp.ErrorCodeInternalError, "failed to encode response").ToBytes()
	}
	return result.ToBytes()
}

func (m *Manager) dispatchGetVariables(stationID string, req *v201.GetVariablesRequest) (*v201.GetVariablesResponse, error) {
	station, err := m.GetStation(stationID)
	if err != nil {
		return nil, err
	}
	return station.Service.HandleGetVariables(stationID, req)
}

func (m *Manager) dispatchSetVariables(stationID string, req *v201.SetVariablesRequest) (*v201.SetVariablesResponse, error) {
	station, err := m.GetStation(stationID)
	if err != nil {
		return nil, err
	}
	return station.Service.HandleSetVariables(stationID, req)
}

func (m *Manager) dispatchGetBaseReport(stationID string, req *v201.GetBaseReportRequest) (*v201.GetBaseReportResponse, error) {
	station, err := m.GetStation(stationID)
	if err != nil {
		return nil, err
	}
	resp, err := station.Service.HandleGetBaseReport(stationID, req)
	if err != nil {
		return nil, err
	}
	if resp.Status == v201.GenericDeviceModelStatusAccepted {
		go func() {
			if sendErr := station.Service.BuildAndSendReport(m.handler, req.RequestId, req.ReportBase, v201.DateTime{Time: time.Now()}); sendErr != nil {
				m.logger.Error("failed to send NotifyReport", "stationId", stationID, "error", sendErr)
			}
		}()
	}
	return resp, nil
}

// seedDeviceModelDefaults materializes the deployment-configured
// ItemsPerMessage/BytesPerMessage ConfigurationKeys for a station before its
// first startup self-check runs, so config.yaml's device_model section takes
// precedence over the registry's own hardcoded defaults. Non-overwriting: a
// key a prior run already persisted is left untouched.
func (m *Manager) seedDeviceModelDefaults(stationID string) {
	if n := m.deviceModelDefaults.ItemsPerMessage; n > 0 {
		_ = m.store.Add(stationID, "devicedatactrlr/itemspermessage", strconv.Itoa(n),
			v201.ConfigurationKeyAddOptions{ReadOnly: true, Visible: true}, false)
	}
	if n := m.deviceModelDefaults.BytesPerMessage; n > 0 {
		_ = m.store.Add(stationID, "devicedatactrlr/bytespermessage", strconv.Itoa(n),
			v201.ConfigurationKeyAddOptions{ReadOnly: true, Visible: true}, false)
	}
}

// AddStation registers a new station, builds its VariableManager/Service, and
// optionally persists it.
func (m *Manager) AddStation(ctx context.Context, cfg Config) (*Station, error) {
	m.mu.Lock()
	if _, exists := m.stations[cfg.StationID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("station already exists: %s", cfg.StationID)
	}

	station := newStation(cfg, m.store, m.logger)
	m.stations[cfg.StationID] = station
	m.mu.Unlock()

	m.seedDeviceModelDefaults(cfg.StationID)

	if m.db != nil {
		if err := m.saveStationToDB(ctx, station); err != nil {
			m.mu.Lock()
			delete(m.stations, cfg.StationID)
			m.mu.Unlock()
			return nil, fmt.Errorf("failed to save station to database: %w", err)
		}
	}

	m.logger.Info("added station", "stationId", cfg.StationID)
	return station, nil
}

// RemoveStation stops and removes a station.
func (m *Manager) RemoveStation(ctx context.Context, stationID string) error {
	m.mu.Lock()
	station, exists := m.stations[stationID]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("station not found: %s", stationID)
	}
	delete(m.stations, stationID)
	m.mu.Unlock()

	station.stop()

	if m.db != nil {
		_, err := m.db.StationsCollection.DeleteOne(ctx, bson.M{"station_id": stationID})
		if err != nil {
			return fmt.Errorf("failed to delete station from database: %w", err)
		}
	}

	m.logger.Info("removed station", "stationId", stationID)
	return nil
}

// GetStation returns a station by ID.
func (m *Manager) GetStation(stationID string) (*Station, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	station, exists := m.stations[stationID]
	if !exists {
		return nil, fmt.Errorf("station not found: %s", stationID)
	}
	return station, nil
}

// GetAllStations returns a shallow copy of the station map.
func (m *Manager) GetAllStations() map[string]*Station {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*Station, len(m.stations))
	for id, s := range m.stations {
		out[id] = s
	}
	return out
}

// StartStation boots one station: starts its heartbeat/websocket-ping loops
// and sends BootNotification. The device model's own startup self-check runs
// lazily on the first GetVariables/SetVariables/GetBaseReport batch.
func (m *Manager) StartStation(stationID string) error {
	station, err := m.GetStation(stationID)
	if err != nil {
		return err
	}

	station.StateMachine.SetState(StateConnecting, "manual start")
	station.start()
	station.StateMachine.SetState(StateRegistered, "started")

	go m.sendBootNotification(station)
	return nil
}

// AutoStart starts every station with AutoStart=true.
func (m *Manager) AutoStart() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.stations))
	for id, station := range m.stations {
		if station.Config.Enabled && station.Config.AutoStart {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.StartStation(id); err != nil {
			m.logger.Error("failed to auto-start station", "stationId", id, "error", err)
		}
	}
}

func (m *Manager) sendBootNotification(station *Station) {
	req := &v201.BootNotificationRequest{
		ChargingStation: v201.ChargingStation{
			SerialNumber:    station.Config.SerialNumber,
			Model:           station.Config.Model,
			VendorName:      station.Config.Vendor,
			FirmwareVersion: station.Config.FirmwareVersion,
		},
		Reason: v201.BootReasonPowerUp,
	}

	if _, err := m.handler.SendBootNotification(station.Config.StationID, req); err != nil {
		m.logger.Error("failed to send BootNotification", "stationId", station.Config.StationID, "error", err)
	}
}

// StartSync starts the background state synchronization.
func (m *Manager) StartSync() {
	if m.db == nil {
		return
	}
	m.syncWg.Add(1)
	go m.syncLoop()
	m.logger.Info("started station sync", "interval", m.syncInterval.String())
}

func (m *Manager) syncLoop() {
	defer m.syncWg.Done()

	ticker := time.NewTicker(m.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.syncAll()
		}
	}
}

func (m *Manager) syncAll() {
	for _, station := range m.GetAllStations() {
		if err := m.saveStationToDB(m.ctx, station); err != nil {
			m.logger.Error("failed to sync station", "stationId", station.Config.StationID, "error", err)
		}
	}
}

func (m *Manager) saveStationToDB(ctx context.Context, station *Station) error {
	dbStation := convertConfigToStorage(station.Config)
	dbStation.ID = ""

	opts := options.Replace().SetUpsert(true)
	_, err := m.db.StationsCollection.ReplaceOne(
		ctx,
		bson.M{"station_id": station.Config.StationID},
		dbStation,
		opts,
	)
	return err
}

func convertConfigToStorage(cfg Config) storage.Station {
	var connectors []storage.Connector
	for _, evse := range cfg.EVSEs {
		for _, c := range evse.Connectors {
			connectors = append(connectors, storage.Connector{
				ID:       c.ID,
				Type:     c.Type,
				MaxPower: c.MaxPowerWatts,
				Status:   "Available",
			})
		}
	}

	return storage.Station{
		ID:              cfg.ID,
		StationID:       cfg.StationID,
		Name:            cfg.Name,
		Enabled:         cfg.Enabled,
		ProtocolVersion: "2.0.1",
		Vendor:          cfg.Vendor,
		Model:           cfg.Model,
		SerialNumber:    cfg.SerialNumber,
		FirmwareVersion: cfg.FirmwareVersion,
		Connectors:      connectors,
		CreatedAt:       cfg.CreatedAt,
		UpdatedAt:       time.Now(),
		Tags:            cfg.Tags,
	}
}

// Shutdown gracefully shuts down the manager and all stations.
func (m *Manager) Shutdown() {
	m.logger.Info("shutting down station manager")

	m.cancel()
	m.syncWg.Wait()

	for _, station := range m.GetAllStations() {
		station.stop()
	}

	if m.db != nil {
		m.syncAll()
	}

	m.logger.Info("station manager shutdown complete")
}

// GetStats returns manager statistics.
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var connected, disconnected, registered, faulted, unavailable int
	for _, station := range m.stations {
		state := station.StateMachine.GetState()
		if station.StateMachine.IsConnected() {
			connected++
		} else if state == StateDisconnected || state == StateUnknown {
			disconnected++
		}
		switch state {
		case StateRegistered:
			registered++
		case StateFaulted:
			faulted++
		case StateUnavailable:
			unavailable++
		}
	}

	return map[string]interface{}{
		"total":        len(m.stations),
		"connected":    connected,
		"disconnected": disconnected,
		"registered":   registered,
		"faulted":      faulted,
		"unavailable":  unavailable,
		"syncInterval": m.syncInterval.String(),
	}
}

// ---- Station ----

// Station is one managed charging station instance implementing
// v201.StationContext.
type Station struct {
	Config       Config
	StateMachine *StateMachine

	VariableManager *v201.VariableManager
	Service         *v201.Service

	store  v201.ConfigurationKeyStore
	logger *slog.Logger

	mu sync.Mutex

	heartbeatSeconds atomic.Int32
	wsPingSeconds    atomic.Int32

	heartbeatCancel context.CancelFunc
	heartbeatDone   chan struct{}
	wsPingCancel    context.CancelFunc
	wsPingDone      chan struct{}
}

func newStation(cfg Config, store v201.ConfigurationKeyStore, logger *slog.Logger) *Station {
	s := &Station{
		Config:       cfg,
		StateMachine: NewStateMachine(),
		store:        store,
		logger:       logger,
	}
	s.heartbeatSeconds.Store(int32(cfg.Simulation.HeartbeatIntervalSeconds))
	s.wsPingSeconds.Store(int32(cfg.Simulation.WebSocketPingIntervalSeconds))

	s.VariableManager = v201.NewVariableManager(cfg.StationID, s, store, v201.DefaultRegistry, logger)
	s.Service = v201.NewService(cfg.StationID, s.VariableManager, logger)

	return s
}

func (s *Station) start() {
	s.restartHeartbeatTicker()
	s.restartWebSocketPingTicker()
}

func (s *Station) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.heartbeatCancel != nil {
		s.heartbeatCancel()
		<-s.heartbeatDone
		s.heartbeatCancel = nil
	}
	if s.wsPingCancel != nil {
		s.wsPingCancel()
		<-s.wsPingDone
		s.wsPingCancel = nil
	}
	s.StateMachine.SetState(StateDisconnected, "stopped")
}

func (s *Station) restartHeartbeatTicker() {
	s.mu.Lock()
	if s.heartbeatCancel != nil {
		s.heartbeatCancel()
		<-s.heartbeatDone
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.heartbeatCancel = cancel
	s.heartbeatDone = make(chan struct{})
	seconds := int(s.heartbeatSeconds.Load())
	s.mu.Unlock()

	if seconds <= 0 {
		close(s.heartbeatDone)
		return
	}

	go func() {
		defer close(s.heartbeatDone)
		ticker := time.NewTicker(time.Duration(seconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.logger.Debug("heartbeat", "stationId", s.Config.StationID)
			}
		}
	}()
}

func (s *Station) restartWebSocketPingTicker() {
	s.mu.Lock()
	if s.wsPingCancel != nil {
		s.wsPingCancel()
		<-s.wsPingDone
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.wsPingCancel = cancel
	s.wsPingDone = make(chan struct{})
	seconds := int(s.wsPingSeconds.Load())
	s.mu.Unlock()

	if seconds <= 0 {
		close(s.wsPingDone)
		return
	}

	go func() {
		defer close(s.wsPingDone)
		ticker := time.NewTicker(time.Duration(seconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.logger.Debug("websocket ping", "stationId", s.Config.StationID)
			}
		}
	}()
}

// ---- v201.StationContext ----

func (s *Station) LogPrefix() string { return fmt.Sprintf("[%s]", s.Config.StationID) }

func (s *Station) Model() string           { return s.Config.Model }
func (s *Station) VendorName() string      { return s.Config.Vendor }
func (s *Station) SerialNumber() string    { return s.Config.SerialNumber }
func (s *Station) FirmwareVersion() string { return s.Config.FirmwareVersion }

func (s *Station) HeartbeatInterval() int     { return int(s.heartbeatSeconds.Load()) }
func (s *Station) WebSocketPingInterval() int { return int(s.wsPingSeconds.Load()) }

// RestartHeartbeat re-reads the persisted HeartbeatInterval and restarts the
// ticker at the new period. Called by VariableManager.SetVariable after a
// successful write, never from within a GetVariable/resolveValue call.
func (s *Station) RestartHeartbeat() {
	if entry, ok := s.store.Get(s.Config.StationID, "ocppcommctrlr/heartbeatinterval"); ok {
		if n, err := strconv.Atoi(entry.Value); err == nil && n > 0 {
			s.heartbeatSeconds.Store(int32(n))
		}
	}
	s.restartHeartbeatTicker()
}

// RestartWebSocketPing re-reads the persisted WebSocketPingInterval and
// restarts the ticker at the new period.
func (s *Station) RestartWebSocketPing() {
	if entry, ok := s.store.Get(s.Config.StationID, "ocppcommctrlr/websocketpinginterval"); ok {
		if n, err := strconv.Atoi(entry.Value); err == nil && n >= 0 {
			s.wsPingSeconds.Store(int32(n))
		}
	}
	s.restartWebSocketPingTicker()
}

// EVSEs reports topology to the report builder: one entry per EVSE
// (ConnectorID 0) and one per connector (ConnectorID > 0).
func (s *Station) EVSEs() map[int]v201.EVSEInfo {
	out := make(map[int]v201.EVSEInfo)
	key := 0
	for _, evse := range s.Config.EVSEs {
		out[key] = v201.EVSEInfo{ID: evse.ID, ConnectorID: 0}
		key++
		for _, c := range evse.Connectors {
			out[key] = v201.EVSEInfo{ID: evse.ID, ConnectorID: c.ID}
			key++
		}
	}
	return out
}
