package resolver

import (
	"fmt"

	"github.com/bytedance/sonic"
)

var jsonAPI = sonic.ConfigStd

// ServiceConfig describes one running service instance.
type ServiceConfig struct {
	Id           string   `json:"Id"`
	Name         string   `json:"Name"`
	Mac          string   `json:"Mac,omitempty"`
	State        string   `json:"State,omitempty"`
	Domain       string   `json:"Domain,omitempty"`
	Address      string   `json:"Address,omitempty"`
	Port         int      `json:"Port"`
	Proxy        int      `json:"Proxy,omitempty"`
	TLS          bool     `json:"TLS,omitempty"`
	KeepAlive    bool     `json:"KeepAlive,omitempty"`
	KeepUpToDate bool     `json:"KeepUpToDate,omitempty"`
	PublisherId  string   `json:"PublisherId,omitempty"`
	Version      string   `json:"Version,omitempty"`
	Description  string   `json:"Description,omitempty"`
	Keywords     []string `json:"Keywords,omitempty"`
	Discoveries  []string `json:"Discoveries,omitempty"`
	Repositories []string `json:"Repositories,omitempty"`
	Path         string   `json:"Path,omitempty"`
}

// Peer is another globule known to this one.
type Peer struct {
	Domain  string `json:"Domain"`
	Address string `json:"Address"`
	Mac     string `json:"Mac,omitempty"`
	Port    int    `json:"Port"`
}

// Document is the application-server configuration.
type Document struct {
	Name      string                   `json:"Name"`
	Mac       string                   `json:"Mac,omitempty"`
	Domain    string                   `json:"Domain"`
	Protocol  string                   `json:"Protocol"`
	PortHttp  int                      `json:"PortHttp,omitempty"`
	PortHttps int                      `json:"PortHttps,omitempty"`
	Services  map[string]ServiceConfig `json:"Services"`
	Peers     []Peer                   `json:"Peers,omitempty"`
}

// Clone returns a copy whose Services map can be mutated independently.
func (d Document) Clone() Document {
	out := d
	out.Services = make(map[string]ServiceConfig, len(d.Services))
	for id, s := range d.Services {
		out.Services[id] = s
	}
	out.Peers = append([]Peer(nil), d.Peers...)
	return out
}

// ParseDocument decodes a JSON configuration document.
func ParseDocument(b []byte) (Document, error) {
	var d Document
	if err := jsonAPI.Unmarshal(b, &d); err != nil {
		return Document{}, fmt.Errorf("resolver: parse document: %w", err)
	}
	if d.Services == nil {
		d.Services = map[string]ServiceConfig{}
	}
	return d, nil
}

// ParseServiceConfig decodes one JSON service entry, as pushed on
// configuration update events.
func ParseServiceConfig(b []byte) (ServiceConfig, error) {
	var s ServiceConfig
	if err := jsonAPI.Unmarshal(b, &s); err != nil {
		return ServiceConfig{}, fmt.Errorf("resolver: parse service config: %w", err)
	}
	if s.Id == "" {
		return ServiceConfig{}, fmt.Errorf("resolver: service config without Id")
	}
	return s, nil
}

// MarshalServiceConfig encodes s as JSON.
func MarshalServiceConfig(s ServiceConfig) ([]byte, error) {
	return jsonAPI.Marshal(s)
}
