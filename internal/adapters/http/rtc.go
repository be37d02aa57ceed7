package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/config"
)

// ICEServers converts configured servers, skipping URLs that are not
// valid stun/turn URIs.
func ICEServers(cfg config.RTCConfig) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		urls := make([]string, 0, len(s.URLs))
		for _, raw := range s.URLs {
			if _, err := stun.ParseURI(raw); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Str("url", raw).Msg("skipping ice server url")
				continue
			}
			urls = append(urls, raw)
		}
		if len(urls) == 0 {
			continue
		}
		srv := webrtc.ICEServer{URLs: urls, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return out
}

func rtcConfigHandler(cfg config.RTCConfig) gin.HandlerFunc {
	servers := ICEServers(cfg)
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": servers})
	}
}
