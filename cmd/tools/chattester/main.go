package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/travel-assistant/backend/internal/conversation"
	"github.com/zhouzirui/travel-assistant/backend/internal/handler/socket"
	"github.com/zhouzirui/travel-assistant/backend/internal/model/chat"
)

type inboundFrame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	server := flag.String("server", "http://localhost:8080", "后端服务地址")
	personaID := flag.String("persona", "travel-assistant", "角色 ID")
	session := flag.String("session", "", "已有的 sessionID，留空则自动创建")
	text := flag.String("text", "", "发送的消息文本")
	quick := flag.Int("quick", 0, "选择第 N 个快捷回复 (从 1 开始)，与 -text 互斥")
	timeout := flag.Duration("timeout", 15*time.Second, "等待回复的超时时间")

	flag.Parse()

	if (*text == "") == (*quick == 0) {
		flag.Usage()
		log.Fatal("请通过 -text 或 -quick 指定要发送的内容")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sessionID := *session
	if sessionID == "" {
		id, err := createSession(ctx, *server, *personaID)
		if err != nil {
			log.Fatalf("创建会话失败: %v", err)
		}
		sessionID = id
		log.Printf("会话已创建: session=%s persona=%s", sessionID, *personaID)
	}

	wsURL, err := socketURL(*server, sessionID)
	if err != nil {
		log.Fatalf("解析服务地址失败: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		log.Fatalf("WebSocket 连接失败: %v", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	var hello inboundFrame
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != socket.TypeConnected {
		log.Fatalf("未收到 connected 帧: %v", err)
	}

	var connected struct {
		QuickReplies []string `json:"quickReplies"`
	}
	_ = json.Unmarshal(hello.Data, &connected)

	if err := sendRequest(conn, *text, *quick, connected.QuickReplies); err != nil {
		log.Fatalf("发送失败: %v", err)
	}

	if err := awaitReply(conn); err != nil {
		log.Fatalf("等待回复失败: %v", err)
	}
}

func createSession(ctx context.Context, server, personaID string) (string, error) {
	body, err := json.Marshal(map[string]string{"personaId": personaID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/api/session", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var view struct {
		Session chat.Session `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return "", err
	}
	return view.Session.ID, nil
}

func socketURL(server, sessionID string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws/" + sessionID
	return u.String(), nil
}

func sendRequest(conn *websocket.Conn, text string, quick int, menu []string) error {
	if quick > 0 {
		if quick > len(menu) {
			return fmt.Errorf("快捷回复不可用: 当前共有 %d 项", len(menu))
		}
		data, _ := json.Marshal(socket.QuickReplyMessage{Phrase: menu[quick-1]})
		log.Printf("发送快捷回复: %q", menu[quick-1])
		return conn.WriteJSON(socket.InboundMessage{Type: socket.TypeQuickReply, Data: data})
	}

	data, _ := json.Marshal(socket.TextMessage{Text: text})
	log.Printf("发送消息: %q", text)
	return conn.WriteJSON(socket.InboundMessage{Type: socket.TypeText, Data: data})
}

// awaitReply prints frames until the bot reply has landed.
func awaitReply(conn *websocket.Conn) error {
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}

		switch frame.Type {
		case socket.TypeAck:
			var ack socket.Ack
			_ = json.Unmarshal(frame.Data, &ack)
			log.Printf("ack: request=%s accepted=%t", ack.Request, ack.Accepted)
			if !ack.Accepted {
				return fmt.Errorf("消息未被接受 (空白文本或机器人正在回复)")
			}
		case socket.TypeError:
			return fmt.Errorf("服务端错误: %s", frame.Data)
		case socket.TypeEvent:
			var ev conversation.Event
			if err := json.Unmarshal(frame.Data, &ev); err != nil {
				return err
			}
			switch ev.Type {
			case conversation.EventMessage:
				log.Printf("[%s %s] %s", ev.Message.Timestamp.Local().Format("15:04"), ev.Message.Sender, ev.Message.Text)
				if ev.Message.Sender == chat.SenderBot {
					return nil
				}
			case conversation.EventTyping:
				log.Printf("typing=%t", ev.Typing)
			case conversation.EventClosed:
				return fmt.Errorf("会话已关闭")
			}
		}
	}
}
