package analyze

import (
	"strings"

	"github.com/hitoshi/ideascout/internal/model"
)

// audienceAliases はLLM出力の表記ゆれを正規のオーディエンス分類へ写像する。
// 元データには英語とロシア語の両方の表記が観測されている。
var audienceAliases = map[string]model.AudienceType{
	"consumers":     model.AudienceConsumers,
	"consumer":      model.AudienceConsumers,
	"b2c":           model.AudienceConsumers,
	"простые_люди":  model.AudienceConsumers,
	"простые люди":  model.AudienceConsumers,
	"entrepreneurs": model.AudienceEntrepreneurs,
	"entrepreneur":  model.AudienceEntrepreneurs,
	"b2b":           model.AudienceEntrepreneurs,
	"предприниматели": model.AudienceEntrepreneurs,
	"business":      model.AudienceEntrepreneurs,
	"mixed":         model.AudienceMixed,
	"hybrid":        model.AudienceMixed,
}

// ビジネス側/消費者側のシグナル語。部分一致でカウントする。
var (
	businessSignals = []string{
		"business", "бизнес", "основател", "founder", "saas", "компан", "предприним",
		"фриланс", "agency", "crm", "sales", "маркетинг", "small business",
	}
	consumerSignals = []string{
		"люди", "пользовател", "consumer", "b2c", "родител", "student", "студент",
		"household", "семь", "everyday", "обыч", "дом", "личн", "person", "любой",
	}
)

// NormalizeAudience はLLMが返したaudience_type文字列を正規化する。
// 既知の別名に一致しない場合はunknownを返す。
func NormalizeAudience(value string) model.AudienceType {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return model.AudienceUnknown
	}
	if t, ok := audienceAliases[v]; ok {
		return t
	}
	return model.AudienceUnknown
}

// InferAudience は対象オーディエンスと問題文からオーディエンス分類を推定する。
// シグナル語の出現数による決定的な判定であり、同一入力は常に同一の結果を返す。
// 両側のシグナルが検出された場合はmixed、どちらも検出されない場合はunknown。
func InferAudience(targetAudience, problemStatement string) model.AudienceType {
	text := strings.ToLower(targetAudience + " " + problemStatement)

	businessHits := 0
	for _, s := range businessSignals {
		if strings.Contains(text, s) {
			businessHits++
		}
	}
	consumerHits := 0
	for _, s := range consumerSignals {
		if strings.Contains(text, s) {
			consumerHits++
		}
	}

	switch {
	case businessHits > 0 && consumerHits > 0:
		return model.AudienceMixed
	case businessHits > 0:
		return model.AudienceEntrepreneurs
	case consumerHits > 0:
		return model.AudienceConsumers
	default:
		return model.AudienceUnknown
	}
}

// ResolveAudience は正規化と推定を組み合わせた最終的な分類を返す。
// 明示的な分類が有効ならそれを使用し、unknownの場合のみ推定にフォールバックする。
func ResolveAudience(declared, targetAudience, problemStatement string) model.AudienceType {
	audience := NormalizeAudience(declared)
	if audience != model.AudienceUnknown {
		return audience
	}
	return InferAudience(targetAudience, problemStatement)
}
