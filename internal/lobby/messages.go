package lobby

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// Lobby methods and messages.
const (
	MethodLogin      = "login"
	MethodLogout     = "logout"
	MethodListGames  = "list_games"
	MethodCreateGame = "create_game"
	MethodJoinGame   = "join_game"

	MessageGameOver = "game_over"
)

// LoginResult answers a login. Failures are reported here, never as
// request errors.
type LoginResult struct {
	Success   bool
	Error     string
	SessionID string
}

func (r LoginResult) toStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"success":    structpb.NewBoolValue(r.Success),
		"error":      structpb.NewStringValue(r.Error),
		"session_id": structpb.NewStringValue(r.SessionID),
	}}
}

func loginResultFrom(s *structpb.Struct) LoginResult {
	f := s.GetFields()
	return LoginResult{
		Success:   f["success"].GetBoolValue(),
		Error:     f["error"].GetStringValue(),
		SessionID: f["session_id"].GetStringValue(),
	}
}

// JoinResult answers create_game and join_game.
type JoinResult struct {
	Success bool
	Error   string
	GameID  string
	Player  int
	Started bool
}

func (r JoinResult) toStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"success": structpb.NewBoolValue(r.Success),
		"error":   structpb.NewStringValue(r.Error),
		"game_id": structpb.NewStringValue(r.GameID),
		"player":  structpb.NewNumberValue(float64(r.Player)),
		"started": structpb.NewBoolValue(r.Started),
	}}
}

func joinResultFrom(s *structpb.Struct) JoinResult {
	f := s.GetFields()
	return JoinResult{
		Success: f["success"].GetBoolValue(),
		Error:   f["error"].GetStringValue(),
		GameID:  f["game_id"].GetStringValue(),
		Player:  int(f["player"].GetNumberValue()),
		Started: f["started"].GetBoolValue(),
	}
}

func failedJoin(msg string) JoinResult {
	return JoinResult{Error: msg}
}

func infoToValue(info HostInfo) *structpb.Value {
	players := make([]*structpb.Value, len(info.Players))
	for i, p := range info.Players {
		players[i] = structpb.NewStringValue(p)
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"id":      structpb.NewStringValue(info.ID),
		"state":   structpb.NewStringValue(info.State.String()),
		"players": structpb.NewListValue(&structpb.ListValue{Values: players}),
		"seats":   structpb.NewNumberValue(float64(info.Seats)),
		"winner":  structpb.NewStringValue(info.Winner),
		"turn":    structpb.NewNumberValue(float64(info.Turn)),
	}})
}

// GameSummary is a listed game as a client sees it.
type GameSummary struct {
	ID      string
	State   string
	Players []string
	Seats   int
	Winner  string
	Turn    int
}

func summaryFrom(s *structpb.Struct) GameSummary {
	f := s.GetFields()
	out := GameSummary{
		ID:     f["id"].GetStringValue(),
		State:  f["state"].GetStringValue(),
		Seats:  int(f["seats"].GetNumberValue()),
		Winner: f["winner"].GetStringValue(),
		Turn:   int(f["turn"].GetNumberValue()),
	}
	for _, p := range f["players"].GetListValue().GetValues() {
		out.Players = append(out.Players, p.GetStringValue())
	}
	return out
}

// GameOver tells a seated player how a game ended.
type GameOver struct {
	GameID string
	Winner string
	Turns  int
}

func gameOverFrom(s *structpb.Struct) GameOver {
	f := s.GetFields()
	return GameOver{
		GameID: f["game_id"].GetStringValue(),
		Winner: f["winner"].GetStringValue(),
		Turns:  int(f["turns"].GetNumberValue()),
	}
}

func (g GameOver) toStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"game_id": structpb.NewStringValue(g.GameID),
		"winner":  structpb.NewStringValue(g.Winner),
		"turns":   structpb.NewNumberValue(float64(g.Turns)),
	}}
}
