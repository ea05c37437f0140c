package wa

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mdp/qrterminal"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	walog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"

	"github.com/fardannozami/amchegoa/internal/app/usecase"
	"github.com/fardannozami/amchegoa/internal/domain"
)

// ErrNoImage is returned by DownloadImage for messages without a photo.
var ErrNoImage = errors.New("message has no image")

type MessageHandler func(ctx context.Context, evt *events.Message)

type Service struct {
	client         *whatsmeow.Client
	dbBasePath     string
	log            *zap.Logger
	waLog          walog.Logger
	messageHandler MessageHandler
}

func NewService(dbBasePath string, logger *zap.Logger) *Service {
	return &Service{
		dbBasePath: dbBasePath,
		log:        logger,
		waLog:      NewLogger(logger, "whatsmeow"),
	}
}

func (s *Service) Initialize(ctx context.Context) error {
	// whatsmeow keeps its own connection to the same file; WAL sticks once enabled.
	dbAddress := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", s.dbBasePath)
	container, err := sqlstore.New(ctx, "sqlite", dbAddress, s.waLog.Sub("Database"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to get devices: %w", err)
	}

	var device *store.Device
	if len(devices) > 0 {
		device = devices[0]
	} else {
		device = container.NewDevice()
	}

	s.client = whatsmeow.NewClient(device, s.waLog.Sub("Client"))
	s.registerEventHandlers()

	return nil
}

func (s *Service) Connect() error {
	if s.client == nil {
		return fmt.Errorf("client not initialized")
	}
	if s.client.IsConnected() {
		return nil
	}
	return s.client.Connect()
}

func (s *Service) Disconnect() {
	if s.client != nil {
		s.client.Disconnect()
	}
}

func (s *Service) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}

func (s *Service) registerEventHandlers() {
	s.client.AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			if s.messageHandler != nil {
				go s.messageHandler(context.Background(), v)
			}
		case *events.Connected:
			s.log.Info("whatsapp connected")
		case *events.LoggedOut:
			s.log.Warn("whatsapp session logged out", zap.Int("reason", int(v.Reason)))
		}
	})
}

func (s *Service) GetClient() *whatsmeow.Client {
	return s.client
}

func (s *Service) IsLoggedIn() bool {
	return s.client.Store.ID != nil
}

// SenderID returns a stable namespace for the sender. Hidden (LID) senders are
// mapped back to their phone number when whatsmeow knows the mapping.
func (s *Service) SenderID(ctx context.Context, sender types.JID) string {
	if sender.Server != types.HiddenUserServer {
		return sender.User
	}
	pn, err := s.client.Store.LIDs.GetPNForLID(ctx, sender)
	if err != nil || pn.IsEmpty() {
		s.log.Debug("no phone number for lid", zap.String("lid", sender.User), zap.Error(err))
		return sender.User
	}
	return pn.User
}

// DownloadImage fetches the photo attached to a message.
func (s *Service) DownloadImage(ctx context.Context, msg *waE2E.Message) (usecase.Image, error) {
	img := msg.GetImageMessage()
	if img == nil {
		return usecase.Image{}, ErrNoImage
	}
	data, err := s.client.Download(ctx, img)
	if err != nil {
		return usecase.Image{}, fmt.Errorf("download image: %w", err)
	}
	return usecase.Image{Data: data, MimeType: img.GetMimetype(), Name: img.GetCaption()}, nil
}

// SharedLocation extracts a pinned or live location from a message.
func SharedLocation(msg *waE2E.Message) (domain.Coordinate, bool) {
	if loc := msg.GetLocationMessage(); loc != nil {
		return domain.Coordinate{Lat: loc.GetDegreesLatitude(), Lng: loc.GetDegreesLongitude()}, true
	}
	if loc := msg.GetLiveLocationMessage(); loc != nil {
		return domain.Coordinate{Lat: loc.GetDegreesLatitude(), Lng: loc.GetDegreesLongitude()}, true
	}
	return domain.Coordinate{}, false
}

// MessageText returns the plain or extended text body of a message.
func MessageText(msg *waE2E.Message) string {
	if msg.GetConversation() != "" {
		return msg.GetConversation()
	}
	return msg.GetExtendedTextMessage().GetText()
}

func (s *Service) SendText(ctx context.Context, chat types.JID, text string) error {
	_, err := s.client.SendMessage(ctx, chat, &waE2E.Message{Conversation: proto.String(text)})
	return err
}

func (s *Service) Pair(ctx context.Context, phone string) (string, error) {
	if s.IsLoggedIn() {
		return "", fmt.Errorf("already logged in")
	}
	if !s.client.IsConnected() {
		return "", fmt.Errorf("client not connected")
	}

	// PairPhone(phone, showPushNotification, clientType, clientDisplayName)
	code, err := s.client.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		return "", err
	}

	return code, nil
}

func (s *Service) PrintQR(ctx context.Context) {
	if s.client.Store.ID != nil {
		return
	}
	qrChan, _ := s.client.GetQRChannel(ctx)
	if err := s.client.Connect(); err != nil {
		s.log.Error("failed to connect for QR", zap.Error(err))
		return
	}
	for evt := range qrChan {
		if evt.Event == "code" {
			fmt.Println("QR Code:", evt.Code)
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
		} else {
			s.log.Info("login event", zap.String("event", evt.Event))
		}
	}
}
