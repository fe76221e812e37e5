package proxy

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"regexp"
	"time"

	"github.com/go-logr/logr"
	"go.minekube.com/common/minecraft/component"

	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/profile"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	"github.com/bifrostmc/bifrost/pkg/proto/state/states"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"github.com/bifrostmc/bifrost/pkg/util/netutil"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

type loginState string

const (
	loginPacketExpectedLoginState        loginState = "loginPacketExpected"
	loginPacketReceivedLoginState        loginState = "loginPacketReceived"
	encryptionRequestSentLoginState      loginState = "encryptionRequestSent"
	encryptionResponseReceivedLoginState loginState = "encryptionResponseReceived"
)

type initialLoginSessionHandler struct {
	conn      netmc.MinecraftConn
	inbound   *initialInbound
	proxy     *Proxy
	handshake *packet.Handshake
	log       logr.Logger

	netmc.NopSessionHandler

	currentState loginState
	login        *packet.ServerLogin
	verify       []byte
}

func newInitialLoginSessionHandler(
	conn netmc.MinecraftConn,
	inbound *initialInbound,
	proxy *Proxy,
	handshake *packet.Handshake,
) netmc.SessionHandler {
	return &initialLoginSessionHandler{
		conn:         conn,
		inbound:      inbound,
		proxy:        proxy,
		handshake:    handshake,
		log:          logr.FromContextOrDiscard(conn.Context()).WithName("loginSession"),
		currentState: loginPacketExpectedLoginState,
	}
}

var playerNameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{2,16}$`)

func (l *initialLoginSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		// Unknown packet, the client is in a bad state, close.
		_ = l.conn.Close()
		return
	}
	switch t := pc.Packet.(type) {
	case *packet.ServerLogin:
		l.handleServerLogin(t)
	case *packet.EncryptionResponse:
		l.handleEncryptionResponse(t)
	default:
		_ = l.conn.Close()
	}
}

func (l *initialLoginSessionHandler) handleServerLogin(login *packet.ServerLogin) {
	if !l.assertState(loginPacketExpectedLoginState) {
		return
	}
	l.currentState = loginPacketReceivedLoginState

	playerKey := login.PlayerKey
	if playerKey != nil {
		if playerKey.Expired() {
			l.disconnect(&component.Translation{Key: "multiplayer.disconnect.invalid_public_key_signature"})
			return
		}
	} else if l.conn.Protocol().GreaterEqual(version.Minecraft_1_19) &&
		l.conn.Protocol().Lower(version.Minecraft_1_19_3) &&
		l.proxy.cfg.ForceKeyAuthentication {
		l.disconnect(&component.Translation{Key: "multiplayer.disconnect.missing_public_key"})
		return
	}
	l.login = login

	// Validate the username format before firing the pre-login event.
	if !playerNameRegex.MatchString(login.Username) {
		l.disconnect(invalidPlayerName)
		return
	}

	e := newPreLoginEvent(l.inbound, login.Username)
	l.proxy.Event().Fire(e)

	if netmc.Closed(l.conn) {
		return // Player was disconnected.
	}

	if e.Result() == DeniedPreLogin {
		l.disconnect(e.Reason())
		return
	}

	if e.Result() != ForceOfflineModePreLogin &&
		(e.Result() == ForceOnlineModePreLogin || l.proxy.cfg.OnlineMode) {
		// Online mode login, send encryption request.
		request := l.generateEncryptionRequest()
		l.verify = make([]byte, len(request.VerifyToken))
		copy(l.verify, request.VerifyToken)
		_ = l.conn.WritePacket(request)
		l.currentState = encryptionRequestSentLoginState

		// Wait for the EncryptionResponse packet.
		return
	}

	// Offline mode login.
	l.initPlayer(profile.NewOffline(login.Username), false)
}

func (l *initialLoginSessionHandler) generateEncryptionRequest() *packet.EncryptionRequest {
	verify := make([]byte, 4)
	_, _ = rand.Read(verify)
	return &packet.EncryptionRequest{
		PublicKey:          l.proxy.authenticator.PublicKey(),
		VerifyToken:        verify,
		ShouldAuthenticate: true,
	}
}

func (l *initialLoginSessionHandler) handleEncryptionResponse(resp *packet.EncryptionResponse) {
	if !l.assertState(encryptionRequestSentLoginState) {
		return
	}
	l.currentState = encryptionResponseReceivedLoginState

	if l.login == nil || len(l.verify) == 0 {
		l.log.V(1).Info("no ServerLogin packet received yet, disconnecting")
		_ = l.conn.Close()
		return
	}

	authn := l.proxy.authenticator
	if playerKey := l.login.PlayerKey; playerKey != nil {
		// 1.19-1.19.2 clients sign the verify token with their key.
		if resp.Salt == nil {
			l.log.V(1).Info("encryption response did not contain salt")
			_ = l.conn.Close()
			return
		}
		salt := make([]byte, 8)
		binary.BigEndian.PutUint64(salt, uint64(*resp.Salt))
		if !playerKey.VerifyDataSignature(resp.VerifyToken, l.verify, salt) {
			l.log.Info("invalid client public key signature")
			_ = l.conn.Close()
			return
		}
	} else {
		valid, err := authn.Verify(resp.VerifyToken, l.verify)
		if err != nil {
			_ = l.conn.Close()
			return
		}
		if !valid {
			l.log.Info("invalid verification token")
			_ = l.conn.Close()
			return
		}
	}

	decryptedSharedSecret, err := authn.DecryptSharedSecret(resp.SharedSecret)
	if err != nil {
		_ = l.conn.Close()
		return
	}

	// Once the client sent EncryptionResponse, encryption is enabled.
	if err = l.conn.EnableEncryption(decryptedSharedSecret); err != nil {
		l.log.Error(err, "error enabling encryption for connecting player")
		l.disconnect(internalServerConnectionError)
		return
	}

	var optionalUserIP string
	if l.proxy.cfg.ShouldPreventClientProxyConnections {
		optionalUserIP = netutil.Host(l.conn.RemoteAddr())
	}

	serverID, err := authn.GenerateServerID(decryptedSharedSecret)
	if err != nil {
		l.disconnect(unableAuthWithMojang)
		return
	}

	log := l.log.WithName("authn")
	ctx, cancel := context.WithTimeout(logr.NewContext(l.conn.Context(), log), 30*time.Second)
	defer cancel()

	authResp, err := authn.AuthenticateJoin(ctx, serverID, l.login.Username, optionalUserIP)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// The player disconnected before we could authenticate.
			return
		}
		l.disconnect(unableAuthWithMojang)
		return
	}

	if !authResp.OnlineMode() {
		log.Info("disconnecting offline mode player from online mode proxy")
		l.disconnect(onlineModeOnly)
		return
	}

	gameProfile, err := authResp.GameProfile()
	if err != nil {
		if netmc.CloseWith(l.conn, packet.NewDisconnect(unableAuthWithMojang,
			l.conn.Protocol(), states.LoginState)) == nil {
			log.Error(err, "unable to extract game profile from session server response")
		}
		return
	}

	l.initPlayer(gameProfile, true)
}

func (l *initialLoginSessionHandler) initPlayer(profile *profile.GameProfile, onlineMode bool) {
	profileRequest := NewGameProfileRequestEvent(l.inbound, *profile, onlineMode)
	l.proxy.Event().Fire(profileRequest)
	if netmc.Closed(l.conn) {
		return // Player was disconnected.
	}
	gameProfile := profileRequest.GameProfile()

	playerKey := l.login.PlayerKey
	if playerKey != nil && playerKey.SignatureHolder() == uuid.Nil {
		playerKey.SetSignatureHolder(gameProfile.ID)
	}

	player := newConnectedPlayer(l.conn, l.proxy, &gameProfile,
		l.inbound.VirtualHost(), l.handshake.ServerAddress,
		onlineMode, l.handshake.Intent(), playerKey)
	if !l.proxy.canRegisterConnection(player) {
		player.Disconnect(alreadyConnected)
		return
	}

	l.log.Info("player has connected, completing login", "player", player.Username(), "id", player.ID())
	l.conn.SetSessionHandler(newAuthSessionHandler(l.inbound, player, onlineMode))
}

func (l *initialLoginSessionHandler) disconnect(reason component.Component) {
	_ = netmc.CloseWith(l.conn, packet.NewDisconnect(reason,
		l.conn.Protocol(), states.LoginState))
}

func (l *initialLoginSessionHandler) assertState(expectedState loginState) bool {
	if l.currentState == expectedState {
		return true
	}
	l.log.Info("received an unexpected packet during initial login session",
		"currentState", l.currentState,
		"expectedState", expectedState)
	_ = l.conn.Close()
	return false
}
