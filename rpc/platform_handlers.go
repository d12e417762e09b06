package rpc

import (
	"net/http"

	"ciphermarket/core/types"
)

type platformFeeParams struct {
	Caller string `json:"caller"`
	FeeBps uint32 `json:"feeBps"`
}

type platformTreasuryParams struct {
	Caller   string `json:"caller"`
	Treasury string `json:"treasury"`
}

type platformCallerParams struct {
	Caller string `json:"caller"`
}

type syncEventsParams struct {
	Limit int `json:"limit"`
}

func (s *Server) handlePlatformSetFeeBps(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params platformFeeParams
	if !singleParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.platform.SetFeeBps(caller, params.FeeBps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handlePlatformSetTreasury(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params platformTreasuryParams
	if !singleParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", err.Error())
		return
	}
	treasury, err := parseAddress(params.Treasury)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", "treasury: "+err.Error())
		return
	}
	if err := s.platform.SetTreasury(caller, treasury); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handlePlatformPause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handlePauseSwitch(w, req, true)
}

func (s *Server) handlePlatformUnpause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handlePauseSwitch(w, req, false)
}

func (s *Server) handlePauseSwitch(w http.ResponseWriter, req *RPCRequest, paused bool) {
	var params platformCallerParams
	if !singleParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", err.Error())
		return
	}
	if paused {
		err = s.platform.Pause(caller)
	} else {
		err = s.platform.Unpause(caller)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handlePlatformWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params platformCallerParams
	if !singleParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", err.Error())
		return
	}
	withdrawn, err := s.platform.WithdrawPlatformEarnings(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"withdrawn": withdrawn.String()})
}

func (s *Server) handlePlatformParams(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if !noParams(w, req) {
		return
	}
	params, err := s.platform.Params()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	balance, err := s.platform.PlatformBalance()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := map[string]interface{}{
		"feeBps":          params.FeeBps,
		"paused":          params.Paused,
		"platformBalance": balance.String(),
	}
	if params.Treasury != ([20]byte{}) {
		result["treasury"] = formatAddress(params.Treasury)
	}
	writeResult(w, req.ID, result)
}

type eventPayload interface {
	Event() *types.Event
}

func (s *Server) handleSyncEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params syncEventsParams
	if len(req.Params) > 0 && !singleParams(w, req, &params) {
		return
	}
	limit := params.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	out := make([]*types.Event, 0, limit)
	if s.recorder != nil {
		for _, evt := range s.recorder.Tail(limit) {
			if payload, ok := evt.(eventPayload); ok {
				out = append(out, payload.Event())
				continue
			}
			out = append(out, &types.Event{Type: evt.EventType(), Attributes: map[string]string{}})
		}
	}
	writeResult(w, req.ID, map[string]interface{}{"events": out})
}
