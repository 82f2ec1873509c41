package verify

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/ssh"

	"github.com/soniclab-network/soniclab/pkg/topology"
	"github.com/soniclab-network/soniclab/pkg/util"
)

// A Prober checks one aspect of a node's management reachability. Probers
// never mutate state; the verifier owns retries and result recording.
type Prober interface {
	Name() string
	Probe(ctx context.Context, node *topology.Node) error
}

// PortProber dials every published service port over TCP. Host is where the
// lab publishes ports, normally the compose host itself.
type PortProber struct {
	Host    string
	Timeout time.Duration
}

func (p *PortProber) Name() string { return "tcp" }

func (p *PortProber) Probe(ctx context.Context, node *topology.Node) error {
	d := net.Dialer{Timeout: p.Timeout}
	for _, sp := range node.Ports.All() {
		conn, err := d.DialContext(ctx, "tcp", util.JoinHostPort(p.Host, sp.Port))
		if err != nil {
			return fmt.Errorf("dial %s port %d: %w", sp.Service, sp.Port, err)
		}
		conn.Close()
	}
	return nil
}

// SSHProber logs in over the published SSH port and runs a trivial command,
// proving the NOS is past boot rather than merely accepting TCP.
type SSHProber struct {
	Host     string
	User     string
	Password string
	Timeout  time.Duration
}

func (p *SSHProber) Name() string { return "ssh" }

func (p *SSHProber) Probe(ctx context.Context, node *topology.Node) error {
	config := &ssh.ClientConfig{
		User: p.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(p.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         p.Timeout,
	}

	client, err := ssh.Dial("tcp", util.JoinHostPort(p.Host, node.Ports.SSH), config)
	if err != nil {
		return fmt.Errorf("ssh dial: %w", err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	if _, err := session.CombinedOutput("echo ready"); err != nil {
		return fmt.Errorf("ssh exec: %w", err)
	}
	return nil
}

// configDBNum is SONiC's CONFIG_DB database number.
const configDBNum = 4

// RedisProber pings the node's CONFIG_DB over the management network. A
// successful PING means the NOS database stack is up, the strongest liveness
// signal short of pushing configuration.
type RedisProber struct {
	Port    int // 0 means the default redis port
	Timeout time.Duration
}

func (p *RedisProber) Name() string { return "configdb" }

func (p *RedisProber) Probe(ctx context.Context, node *topology.Node) error {
	port := p.Port
	if port == 0 {
		port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:        util.JoinHostPort(node.MgmtIP.String(), port),
		DB:          configDBNum,
		DialTimeout: p.Timeout,
		ReadTimeout: p.Timeout,
	})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("config_db ping: %w", err)
	}
	return nil
}

// probeAll runs the probers in order, failing on the first miss.
func probeAll(ctx context.Context, probers []Prober, node *topology.Node) error {
	for _, p := range probers {
		if err := p.Probe(ctx, node); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}
