package lobby

import (
	"context"
	"fmt"
	"net"

	"github.com/fparadis2/mox/internal/transport"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

// Chooser answers the choices a game sends to a client. It receives the
// encoded choice and returns the encoded answer.
type Chooser func(choice *structpb.Struct) (*structpb.Struct, error)

// Passive answers every choice with its default: pass, keep, no attack.
func Passive(*structpb.Struct) (*structpb.Struct, error) {
	return &structpb.Struct{}, nil
}

// Client is a lobby connection.
type Client struct {
	channel  *transport.Channel
	gameOver chan GameOver
	logger   *zap.Logger
}

// Dial connects to the lobby at addr.
func Dial(ctx context.Context, addr string, chooser Chooser, logger *zap.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial lobby %s: %w", addr, err)
	}
	return NewClient(conn, chooser, logger), nil
}

// NewClient serves a lobby connection over conn.
func NewClient(conn net.Conn, chooser Chooser, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chooser == nil {
		chooser = Passive
	}
	c := &Client{
		gameOver: make(chan GameOver, 4),
		logger:   logger,
	}
	router := transport.NewRouter().
		OnRequest(MethodChoose, func(_ context.Context, body *structpb.Struct) (*structpb.Struct, error) {
			return chooser(body)
		}).
		OnMessage(MessageGameOver, func(_ context.Context, body *structpb.Struct) {
			select {
			case c.gameOver <- gameOverFrom(body):
			default:
				c.logger.Warn("game over notification dropped")
			}
		})
	c.channel = transport.NewChannel(conn, router, logger)
	go func() {
		if err := c.channel.Serve(context.Background()); err != nil {
			c.logger.Warn("lobby connection failed", zap.Error(err))
		}
	}()
	return c
}

// GameOver delivers the end of the games the client played.
func (c *Client) GameOver() <-chan GameOver {
	return c.gameOver
}

func (c *Client) Done() <-chan struct{} {
	return c.channel.Done()
}

func (c *Client) Close() error {
	return c.channel.Close()
}

func (c *Client) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	body, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return c.channel.Request(ctx, method, body)
}

func (c *Client) Login(ctx context.Context, user, password string) (LoginResult, error) {
	out, err := c.call(ctx, MethodLogin, map[string]any{"user": user, "password": password})
	if err != nil {
		return LoginResult{}, err
	}
	return loginResultFrom(out), nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.call(ctx, MethodLogout, nil)
	return err
}

// CreateGame hosts a new game playing deck. With vsAI the free seats go to
// computer players and the game starts at once.
func (c *Client) CreateGame(ctx context.Context, deck string, vsAI bool) (JoinResult, error) {
	out, err := c.call(ctx, MethodCreateGame, map[string]any{"deck": deck, "ai": vsAI})
	if err != nil {
		return JoinResult{}, err
	}
	return joinResultFrom(out), nil
}

func (c *Client) JoinGame(ctx context.Context, gameID, deck string) (JoinResult, error) {
	out, err := c.call(ctx, MethodJoinGame, map[string]any{"game": gameID, "deck": deck})
	if err != nil {
		return JoinResult{}, err
	}
	return joinResultFrom(out), nil
}

func (c *Client) ListGames(ctx context.Context) ([]GameSummary, error) {
	out, err := c.call(ctx, MethodListGames, nil)
	if err != nil {
		return nil, err
	}
	var games []GameSummary
	for _, v := range out.GetFields()["games"].GetListValue().GetValues() {
		games = append(games, summaryFrom(v.GetStructValue()))
	}
	return games, nil
}
