package broker

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartLocal(t *testing.T) {
	b, err := StartLocal(nil)
	require.NoError(t, err)
	defer b.Close()

	assert.True(t, strings.HasPrefix(b.URL(), "tcp://127.0.0.1:"))
	assert.Equal(t, "tcp://"+b.Addr(), b.URL())

	client := mqtt.NewClient(mqtt.NewClientOptions().AddBroker(b.URL()).SetClientID("broker-test"))
	token := client.Connect()
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())
	defer client.Disconnect(100)

	received := make(chan string, 1)
	sub := client.Subscribe("zimage/#", 1, func(_ mqtt.Client, msg mqtt.Message) {
		received <- string(msg.Payload())
	})
	require.True(t, sub.WaitTimeout(5*time.Second))
	require.NoError(t, sub.Error())

	pub := client.Publish("zimage/generate", 1, false, "hello")
	require.True(t, pub.WaitTimeout(5*time.Second))

	select {
	case got := <-received:
		assert.Equal(t, "hello", got)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestStartAddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = Start(ln.Addr().String(), nil)
	assert.Error(t, err)
}

func TestFreePort(t *testing.T) {
	port, err := FreePort()
	require.NoError(t, err)
	assert.Greater(t, port, 0)

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	ln.Close()
}
