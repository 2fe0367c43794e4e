package api

import (
	log "github.com/sirupsen/logrus"

	"github.com/technicalkuldeep/blood-dapp/domain"
	"github.com/technicalkuldeep/blood-dapp/hub"
)

// EventLog abstracts the bounded event buffer for handlers.
type EventLog interface {
	Append(domain.Event)
	Snapshot() []domain.Event
	SnapshotRecent(n int) []domain.Event
}

// Broadcaster abstracts the live fan-out registry.
type Broadcaster interface {
	Subscribe() *hub.Subscriber
	Unsubscribe(*hub.Subscriber)
	Publish(domain.Event) int
}

// ChainConfig is the read-only chain surface the dashboard UI resolves
// ground truth against. The event core itself never contacts the chain.
type ChainConfig struct {
	RPCURL   string `json:"rpc"`
	Registry string `json:"registry"`
	NFT      string `json:"nft"`
	Admin    string `json:"admin"`
}

// Options carries the request-independent collaborators of the API.
type Options struct {
	Gate        *SecretGate
	Limiter     *RateGate
	Chain       ChainConfig
	Logger      *log.Logger
	ReplayCount int
}
