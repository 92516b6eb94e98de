package rpc

import (
	"net/http"

	"blockmarket/native/catalog"
	"blockmarket/observability"
)

type catalogCreateStoreParams struct {
	Caller    string `json:"caller"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	ImageHash string `json:"imageHash"`
	DescHash  string `json:"descHash"`
}

type catalogAddProductParams struct {
	Caller     string `json:"caller"`
	StoreID    uint64 `json:"storeId"`
	StoreOwner string `json:"storeOwner"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	ImageHash  string `json:"imageHash"`
	DescHash   string `json:"descHash"`
}

type catalogIDParams struct {
	ID uint64 `json:"id"`
}

type catalogOwnerParams struct {
	Owner string `json:"owner"`
}

type catalogCallerParams struct {
	Caller string `json:"caller"`
}

type storeJSON struct {
	ID        uint64 `json:"id"`
	Owner     string `json:"owner"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	ImageHash string `json:"imageHash"`
	DescHash  string `json:"descHash"`
}

type productJSON struct {
	ID        uint64 `json:"id"`
	StoreID   uint64 `json:"storeId"`
	Owner     string `json:"owner"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	ImageHash string `json:"imageHash"`
	DescHash  string `json:"descHash"`
	Status    string `json:"status"`
	Buyer     string `json:"buyer,omitempty"`
}

func storeToJSON(store *catalog.Store) storeJSON {
	return storeJSON{
		ID:        store.ID,
		Owner:     store.Owner.Hex(),
		Name:      store.Name,
		Email:     store.Email,
		ImageHash: store.ImageHash,
		DescHash:  store.DescHash,
	}
}

func productToJSON(product *catalog.Product) productJSON {
	out := productJSON{
		ID:        product.ID,
		StoreID:   product.StoreID,
		Owner:     product.Owner.Hex(),
		Name:      product.Name,
		Price:     product.Price.String(),
		ImageHash: product.ImageHash,
		DescHash:  product.DescHash,
		Status:    product.Status.String(),
	}
	if !product.Buyer.IsZero() {
		out.Buyer = product.Buyer.Hex()
	}
	return out
}

func (s *Server) handleCatalogCreateStore(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params catalogCreateStoreParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	store, err := s.market.CreateStore(caller, params.Name, params.Email, params.ImageHash, params.DescHash)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, storeToJSON(store))
}

func (s *Server) handleCatalogAddProduct(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params catalogAddProductParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	storeOwner, err := parseAddressField(params.StoreOwner, "storeOwner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parsePositiveBigInt(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	product, err := s.market.AddProduct(caller, params.StoreID, storeOwner, params.Name, price, params.ImageHash, params.DescHash)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, productToJSON(product))
}

func (s *Server) handleCatalogGetStore(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params catalogIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	store, err := s.market.GetStore(params.ID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, storeToJSON(store))
}

func (s *Server) handleCatalogGetProduct(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params catalogIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	product, err := s.market.GetProduct(params.ID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, productToJSON(product))
}

func (s *Server) handleCatalogProductsOfStore(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params catalogIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	ids, err := s.market.ProductsOfStore(params.ID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ids)
}

func (s *Server) handleCatalogStoresOfOwner(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params catalogOwnerParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddressField(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	ids, err := s.market.StoresOfOwner(owner)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ids)
}

func (s *Server) handleCatalogStoresCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	count, err := s.market.StoresCount()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, count)
}

func (s *Server) handleCatalogProductsCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	count, err := s.market.ProductsCount()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, count)
}

func (s *Server) handleCatalogIsActiveStore(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params catalogIDParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	writeResult(w, req.ID, s.market.IsActiveStore(params.ID))
}

func (s *Server) handleCatalogPause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params catalogCallerParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.market.CatalogPause(caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	observability.Escrow().SetPause("catalog", true)
	writeResult(w, req.ID, true)
}

func (s *Server) handleCatalogUnpause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params catalogCallerParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressField(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.market.CatalogUnpause(caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	observability.Escrow().SetPause("catalog", false)
	writeResult(w, req.ID, true)
}
