package rpc

import "net/http"

type marketListParams struct {
	Seller   string `json:"seller"`
	AssetID  uint64 `json:"assetId"`
	CID      string `json:"cid"`
	HPrompt  string `json:"hPrompt"`
	HKeyBase string `json:"hKeyBase"`
	Price    string `json:"price"`
}

type marketPriceParams struct {
	Seller   string `json:"seller"`
	AssetID  uint64 `json:"assetId"`
	NewPrice string `json:"newPrice"`
}

type marketSellerParams struct {
	Seller  string `json:"seller"`
	AssetID uint64 `json:"assetId"`
}

type marketAssetParams struct {
	AssetID uint64 `json:"assetId"`
}

type marketSliceParams struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func (s *Server) handleMarketList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketListParams
	if !singleParams(w, req, &params) {
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", err.Error())
		return
	}
	cid, err := parseHash32(params.CID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", "cid: "+err.Error())
		return
	}
	hPrompt, err := parseHash32(params.HPrompt)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", "hPrompt: "+err.Error())
		return
	}
	hKeyBase, err := parseHash32(params.HKeyBase)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", "hKeyBase: "+err.Error())
		return
	}
	price, err := parsePositiveBigInt(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", "price: "+err.Error())
		return
	}
	listing, err := s.market.List(seller, params.AssetID, cid, hPrompt, hKeyBase, price)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleMarketUpdatePrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketPriceParams
	if !singleParams(w, req, &params) {
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parsePositiveBigInt(params.NewPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", "newPrice: "+err.Error())
		return
	}
	listing, err := s.market.UpdatePrice(seller, params.AssetID, price)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleMarketUnlist(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketSellerParams
	if !singleParams(w, req, &params) {
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDomainInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.market.Unlist(seller, params.AssetID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleMarketGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketAssetParams
	if !singleParams(w, req, &params) {
		return
	}
	listing, ok, err := s.market.Get(params.AssetID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeDomainNotFound, "not_found", "listing unknown")
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleMarketActiveCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if !noParams(w, req) {
		return
	}
	count, err := s.market.ActiveCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]int{"count": count})
}

func (s *Server) handleMarketActiveSlice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketSliceParams
	if !singleParams(w, req, &params) {
		return
	}
	ids, err := s.market.ActiveSlice(params.Offset, params.Limit)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string][]uint64{"assetIds": ids})
}
