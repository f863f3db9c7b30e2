package protocol

// NoOpHandler implements MessageHandler with no-op methods.
type NoOpHandler struct{}

func (NoOpHandler) HandleFleetState(*Envelope, *FleetState)   {}
func (NoOpHandler) HandleLaneRequest(*Envelope, *LaneRequest) {}
func (NoOpHandler) HandlePathRequest(*Envelope, *PathRequest) {}
func (NoOpHandler) HandleModeRequest(*Envelope, *ModeRequest) {}
func (NoOpHandler) HandleClosedLanes(*Envelope, *ClosedLanes) {}
func (NoOpHandler) HandleRobotEvent(*Envelope, *RobotEvent)   {}

var _ MessageHandler = NoOpHandler{}
