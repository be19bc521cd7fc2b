package snapshot

import (
	"encoding/json"
	"fmt"

	"groupfeed/internal/oracle"
)

// Documents are the snapshot's independently serialized sub-documents, one
// per cache field. Readers deserialize each field on its own.
type Documents struct {
	Group     json.RawMessage
	Banks     json.RawMessage
	Prices    json.RawMessage
	TokenData json.RawMessage
	FeedMap   json.RawMessage
}

type groupDTO struct {
	Address string `json:"address"`
	Admin   string `json:"admin"`
	Flags   uint64 `json:"flags"`
}

type bankDTO struct {
	Address              string `json:"address"`
	Group                string `json:"group"`
	Mint                 string `json:"mint"`
	MintDecimals         uint8  `json:"mintDecimals"`
	EmissionsMint        string `json:"emissionsMint,omitempty"`
	OracleKind           string `json:"oracleSetup"`
	OracleMaxAge         uint16 `json:"oracleMaxAge"`
	AssetWeightInit      string `json:"assetWeightInit"`
	AssetWeightMaint     string `json:"assetWeightMaint"`
	LiabilityWeightInit  string `json:"liabilityWeightInit"`
	LiabilityWeightMaint string `json:"liabilityWeightMaint"`
	DepositLimit         uint64 `json:"depositLimit"`
	BorrowLimit          uint64 `json:"borrowLimit"`
	OperationalState     uint8  `json:"operationalState"`
}

type priceComponentsDTO struct {
	Price        string `json:"price"`
	Confidence   string `json:"confidence"`
	LowestPrice  string `json:"lowestPrice"`
	HighestPrice string `json:"highestPrice"`
}

type readingDTO struct {
	PriceRealtime priceComponentsDTO `json:"priceRealtime"`
	PriceWeighted priceComponentsDTO `json:"priceWeighted"`
	Timestamp     int64              `json:"timestamp"`
}

type tokenDTO struct {
	Mint                 string  `json:"mint"`
	TokenProgram         string  `json:"tokenProgram"`
	FeeBps               uint16  `json:"feeBps"`
	EmissionTokenProgram *string `json:"emissionTokenProgram"`
}

func componentsDTO(pc oracle.PriceComponents) priceComponentsDTO {
	return priceComponentsDTO{
		Price:        pc.Price.String(),
		Confidence:   pc.Confidence.String(),
		LowestPrice:  pc.LowestPrice.String(),
		HighestPrice: pc.HighestPrice.String(),
	}
}

// Documents serializes each top-level sub-document independently.
func (s *GroupSnapshot) Documents() (Documents, error) {
	groupDoc, err := json.Marshal(groupDTO{
		Address: s.Group.Address.String(),
		Admin:   s.Group.Admin.String(),
		Flags:   s.Group.Flags,
	})
	if err != nil {
		return Documents{}, fmt.Errorf("serialize group: %w", err)
	}

	banks := make(map[string]bankDTO, len(s.Banks))
	for address, b := range s.Banks {
		dto := bankDTO{
			Address:              address.String(),
			Group:                b.Group.String(),
			Mint:                 b.Mint.String(),
			MintDecimals:         b.MintDecimals,
			OracleKind:           b.Oracle.Kind.String(),
			OracleMaxAge:         b.Oracle.MaxAge,
			AssetWeightInit:      b.Risk.AssetWeightInit.String(),
			AssetWeightMaint:     b.Risk.AssetWeightMaint.String(),
			LiabilityWeightInit:  b.Risk.LiabilityWeightInit.String(),
			LiabilityWeightMaint: b.Risk.LiabilityWeightMaint.String(),
			DepositLimit:         b.Risk.DepositLimit,
			BorrowLimit:          b.Risk.BorrowLimit,
			OperationalState:     uint8(b.Risk.State),
		}
		if b.HasEmissions() {
			dto.EmissionsMint = b.EmissionsMint.String()
		}
		banks[address.String()] = dto
	}
	banksDoc, err := json.Marshal(banks)
	if err != nil {
		return Documents{}, fmt.Errorf("serialize banks: %w", err)
	}

	prices := make(map[string]readingDTO, len(s.Prices))
	for address, reading := range s.Prices {
		prices[address.String()] = readingDTO{
			PriceRealtime: componentsDTO(reading.Realtime),
			PriceWeighted: componentsDTO(reading.Weighted),
			Timestamp:     reading.Timestamp,
		}
	}
	pricesDoc, err := json.Marshal(prices)
	if err != nil {
		return Documents{}, fmt.Errorf("serialize prices: %w", err)
	}

	tokens := make(map[string]tokenDTO, len(s.TokenData))
	for address, td := range s.TokenData {
		dto := tokenDTO{
			Mint:         td.Mint.String(),
			TokenProgram: td.TokenProgram.String(),
			FeeBps:       td.FeeBps,
		}
		if td.EmissionTokenProgram != nil {
			program := td.EmissionTokenProgram.String()
			dto.EmissionTokenProgram = &program
		}
		tokens[address.String()] = dto
	}
	tokensDoc, err := json.Marshal(tokens)
	if err != nil {
		return Documents{}, fmt.Errorf("serialize token data: %w", err)
	}

	feeds := make(map[string]string, len(s.FeedMap))
	for address, feed := range s.FeedMap {
		feeds[address.String()] = feed.String()
	}
	feedsDoc, err := json.Marshal(feeds)
	if err != nil {
		return Documents{}, fmt.Errorf("serialize feed map: %w", err)
	}

	return Documents{
		Group:     groupDoc,
		Banks:     banksDoc,
		Prices:    pricesDoc,
		TokenData: tokensDoc,
		FeedMap:   feedsDoc,
	}, nil
}
