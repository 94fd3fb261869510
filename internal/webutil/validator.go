package webutil

import (
	"log"
	"reflect"
	"strings"

	"github.com/go-playground/locales/ja" // 日本語ロケール
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	ja_translations "github.com/go-playground/validator/v10/translations/ja" // 日本語翻訳
)

// Validator はアプリケーション全体で共有されるバリデータインスタンスです。
var Validator *validator.Validate

// Trans はエラーメッセージを翻訳するためのトランスレータです。
var Trans ut.Translator

var fieldNameTranslations = map[string]string{
	"username":         "ユーザー名",
	"password":         "パスワード",
	"name":             "デッキ名",
	"concept":          "概念",
	"definition":       "定義",
	"deck_id":          "デッキID",
	"card_id":          "カードID",
	"user_answer":      "回答",
	"quality":          "評価",
	"audio_base64":     "音声データ",
	"similarity_score": "類似度",
	"base_url":         "APIのURL",
	// ... 他のフィールドもここに追加 ...
}

func init() {
	// バリデータのインスタンスを生成
	Validator = validator.New()

	// JSONタグ (なければ mapstructure タグ) からフィールド名を取得するように設定
	Validator.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if tag == "" {
			tag = fld.Tag.Get("mapstructure")
		}
		name := strings.SplitN(tag, ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	japanese := ja.New()
	uni := ut.New(japanese, japanese)
	var found bool
	Trans, found = uni.GetTranslator("ja")
	if !found {
		log.Fatal("translator not found")
	}

	if err := ja_translations.RegisterDefaultTranslations(Validator, Trans); err != nil {
		log.Fatal(err)
	}

	// registerTranslation はフィールド名を日本語に置き換えてメッセージを登録するヘルパー
	registerTranslation := func(tag string, msg string, withParam bool) {
		Validator.RegisterTranslation(tag, Trans, func(ut ut.Translator) error {
			return ut.Add(tag, msg, true)
		}, func(ut ut.Translator, fe validator.FieldError) string {
			fieldName := translateFieldName(fe.Field())
			if withParam {
				t, _ := ut.T(tag, fieldName, fe.Param())
				return t
			}
			t, _ := ut.T(tag, fieldName)
			return t
		})
	}

	registerTranslation("required", "{0}は必須項目です。", false)
	registerTranslation("min", "{0}は{1}文字以上で入力してください。", true)
	registerTranslation("max", "{0}は{1}文字以下で入力してください。", true)
	registerTranslation("url", "{0}は有効なURLではありません。", false)
}

func translateFieldName(field string) string {
	if translated, ok := fieldNameTranslations[field]; ok {
		return translated
	}
	return field
}
