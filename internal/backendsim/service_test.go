package backendsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grid-telemetry/dnp3-tester/internal/models"
)

func testConfig() models.DeviceConfiguration {
	return models.DeviceConfiguration{
		BinaryInputs:  []models.PointConfig{{Index: 0, Name: "Door"}},
		BinaryOutputs: []models.PointConfig{{Index: 0, Name: "Breaker"}},
		AnalogOutputs: []models.PointConfig{{Index: 0, Name: "Setpoint"}},
	}
}

func connectedService(t *testing.T, role models.Role) *Service {
	t.Helper()
	svc := NewService(NewLogStore(100, 100))
	require.NoError(t, svc.ApplyConfig(testConfig()))
	require.NoError(t, svc.Connect(models.ConnectRequest{
		Mode:       role,
		IP:         "127.0.0.1",
		Port:       20000,
		LocalAddr:  1,
		RemoteAddr: 10,
		ConnType:   models.TransportTCPClient,
	}, time.Hour))
	t.Cleanup(svc.Disconnect)
	return svc
}

func pointValue(t *testing.T, svc *Service, typ models.PointType, index uint16) float64 {
	t.Helper()
	for _, p := range svc.Data().Points {
		if p.Type == typ && p.Index == index {
			return p.Value
		}
	}
	t.Fatalf("point %s[%d] not found", typ, index)
	return 0
}

func TestConnectRequiresPoints(t *testing.T) {
	svc := NewService(NewLogStore(100, 100))
	err := svc.Connect(models.ConnectRequest{Mode: models.RoleMaster}, time.Hour)
	require.Error(t, err)
}

func TestConnectRejectsDoubleConnect(t *testing.T) {
	svc := connectedService(t, models.RoleMaster)
	err := svc.Connect(models.ConnectRequest{Mode: models.RoleMaster}, time.Hour)
	require.Error(t, err)
}

func TestApplyConfigRefusedWhileConnected(t *testing.T) {
	svc := connectedService(t, models.RoleMaster)
	require.Error(t, svc.ApplyConfig(testConfig()))
	require.Error(t, svc.AddPoint(models.PointCounter, 5, "Energy"))
	require.Error(t, svc.ClearPoints())
}

func TestAddPointRejectsDuplicateIdentity(t *testing.T) {
	svc := NewService(NewLogStore(100, 100))
	require.NoError(t, svc.AddPoint(models.PointBinaryOutput, 0, "Breaker"))
	// Same index under a different group is a distinct point.
	require.NoError(t, svc.AddPoint(models.PointAnalogOutput, 0, "Setpoint"))
	require.Error(t, svc.AddPoint(models.PointBinaryOutput, 0, "Again"))
}

func TestReadIsMasterOnly(t *testing.T) {
	master := connectedService(t, models.RoleMaster)
	require.NoError(t, master.Read())
	stats := master.Data().Stats
	assert.Equal(t, uint32(1), stats.TX)
	assert.Equal(t, uint32(1), stats.RX)

	outstation := connectedService(t, models.RoleOutstation)
	require.Error(t, outstation.Read())
}

func TestDirectOperateSetsOutput(t *testing.T) {
	svc := connectedService(t, models.RoleOutstation)
	resp := svc.Control(models.ControlRequest{
		PointType: models.PointBinaryOutput,
		Index:     0,
		Value:     1.0,
		OpMode:    models.DisciplineDirect,
	})
	require.True(t, resp.OK(), resp.Message)
	assert.Equal(t, 1.0, pointValue(t, svc, models.PointBinaryOutput, 0))

	stats := svc.Data().Stats
	assert.Equal(t, uint32(1), stats.TX)
	assert.Equal(t, uint32(1), stats.RX)
}

func TestDirectNoAckSkipsResponse(t *testing.T) {
	svc := connectedService(t, models.RoleOutstation)
	resp := svc.Control(models.ControlRequest{
		PointType: models.PointBinaryOutput,
		Index:     0,
		Value:     1.0,
		OpMode:    models.DisciplineDirectNoAck,
	})
	require.True(t, resp.OK())

	stats := svc.Data().Stats
	assert.Equal(t, uint32(1), stats.TX)
	assert.Equal(t, uint32(0), stats.RX)
}

func TestSelectThenOperate(t *testing.T) {
	svc := connectedService(t, models.RoleOutstation)

	sel := svc.Control(models.ControlRequest{
		PointType: models.PointAnalogOutput,
		Index:     0,
		Value:     50.5,
		OpMode:    models.DisciplineSelect,
	})
	require.True(t, sel.OK(), sel.Message)
	// Select alone must not move the point.
	assert.Equal(t, 0.0, pointValue(t, svc, models.PointAnalogOutput, 0))

	op := svc.Control(models.ControlRequest{
		PointType: models.PointAnalogOutput,
		Index:     0,
		Value:     50.5,
		OpMode:    models.DisciplineOperate,
	})
	require.True(t, op.OK(), op.Message)
	assert.Equal(t, 50.5, pointValue(t, svc, models.PointAnalogOutput, 0))
}

func TestOperateWithoutSelectRejected(t *testing.T) {
	svc := connectedService(t, models.RoleOutstation)
	resp := svc.Control(models.ControlRequest{
		PointType: models.PointAnalogOutput,
		Index:     0,
		Value:     50.5,
		OpMode:    models.DisciplineOperate,
	})
	require.False(t, resp.OK())
	assert.Equal(t, 0.0, pointValue(t, svc, models.PointAnalogOutput, 0))
	assert.Equal(t, uint32(1), svc.Data().Stats.Errors)
}

func TestOperateConsumesSelect(t *testing.T) {
	svc := connectedService(t, models.RoleOutstation)
	req := models.ControlRequest{
		PointType: models.PointAnalogOutput,
		Index:     0,
		Value:     50.5,
	}

	req.OpMode = models.DisciplineSelect
	require.True(t, svc.Control(req).OK())
	req.OpMode = models.DisciplineOperate
	require.True(t, svc.Control(req).OK())

	// The select arm is spent; a second operate needs a fresh select.
	require.False(t, svc.Control(req).OK())
}

func TestControlRejectsInputPoints(t *testing.T) {
	svc := connectedService(t, models.RoleOutstation)
	resp := svc.Control(models.ControlRequest{
		PointType: models.PointBinaryInput,
		Index:     0,
		Value:     1.0,
		OpMode:    models.DisciplineDirect,
	})
	require.False(t, resp.OK())
}

func TestControlRejectsUnknownPoint(t *testing.T) {
	svc := connectedService(t, models.RoleOutstation)
	resp := svc.Control(models.ControlRequest{
		PointType: models.PointBinaryOutput,
		Index:     99,
		Value:     1.0,
		OpMode:    models.DisciplineDirect,
	})
	require.False(t, resp.OK())
}

func TestControlRequiresConnection(t *testing.T) {
	svc := NewService(NewLogStore(100, 100))
	require.NoError(t, svc.ApplyConfig(testConfig()))
	resp := svc.Control(models.ControlRequest{
		PointType: models.PointBinaryOutput,
		Index:     0,
		Value:     1.0,
		OpMode:    models.DisciplineDirect,
	})
	require.False(t, resp.OK())
}

func TestDisconnectClearsPendingSelects(t *testing.T) {
	svc := NewService(NewLogStore(100, 100))
	require.NoError(t, svc.ApplyConfig(testConfig()))
	connect := func() {
		require.NoError(t, svc.Connect(models.ConnectRequest{
			Mode:     models.RoleOutstation,
			ConnType: models.TransportTCPServer,
		}, time.Hour))
	}
	connect()

	req := models.ControlRequest{
		PointType: models.PointAnalogOutput,
		Index:     0,
		Value:     50.5,
		OpMode:    models.DisciplineSelect,
	}
	require.True(t, svc.Control(req).OK())

	svc.Disconnect()
	connect()
	defer svc.Disconnect()

	req.OpMode = models.DisciplineOperate
	require.False(t, svc.Control(req).OK())
}

func TestSimulationNeverTouchesOutputs(t *testing.T) {
	svc := connectedService(t, models.RoleOutstation)
	for i := 0; i < 10; i++ {
		svc.simulateOnce()
	}
	assert.Equal(t, 0.0, pointValue(t, svc, models.PointBinaryOutput, 0))
	assert.Equal(t, 0.0, pointValue(t, svc, models.PointAnalogOutput, 0))
}

func TestSimulatedFramesDecode(t *testing.T) {
	svc := connectedService(t, models.RoleMaster)
	require.NoError(t, svc.Read())

	frames := svc.store.Frames()
	require.Len(t, frames, 2)
	for _, f := range frames {
		assert.GreaterOrEqual(t, len(f.Data), 13)
		assert.Equal(t, byte(0x05), f.Data[0])
		assert.Equal(t, byte(0x64), f.Data[1])
	}
}

func TestLogWindowEviction(t *testing.T) {
	store := NewLogStore(3, 3)
	for i := 0; i < 5; i++ {
		store.AddLog(models.DirectionSystem, "entry")
	}
	logs := store.Logs()
	require.Len(t, logs, 3)
	// Ids keep climbing even as the oldest entries fall out.
	assert.Equal(t, uint64(2), logs[0].ID)
	assert.Equal(t, uint64(4), logs[2].ID)
}
