package validate

import (
	"strings"

	"github.com/jimd-den/onu-prog/internal/ast"
	"github.com/jimd-den/onu-prog/internal/diag"
	"github.com/jimd-den/onu-prog/internal/onutype"
)

// linguistic checks, for every parameter and return type carrying an
// explicit "a"/"an" article, that the article agrees with the English
// phonological rule on the type's display name's first letter. "the" and
// "nothing" are always acceptable, and a parameter with no explicit
// article is not checked (the grammar treats the article as optional).
func linguistic(units []ast.Discourse) error {
	for _, u := range units {
		switch d := u.(type) {
		case *ast.Behavior:
			if err := checkHeader(d.Header); err != nil {
				return err
			}
		case *ast.Shape:
			for _, h := range d.Behaviors {
				if err := checkHeader(h); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkHeader(h ast.BehaviorHeader) error {
	for _, p := range h.Params {
		if err := checkArticle(p.Type); err != nil {
			return err
		}
	}
	return checkArticle(h.Return)
}

func checkArticle(ti onutype.TypeInfo) error {
	if ti.Article != onutype.ArticleA && ti.Article != onutype.ArticleAn {
		return nil
	}
	required := requiredArticle(ti.DisplayName)
	if ti.Article.String() == required {
		return nil
	}
	return diag.LinguisticViolation(diag.Span{}, ti.Article.String(), required, ti.DisplayName)
}

func requiredArticle(displayName string) string {
	if displayName == "" {
		return "a"
	}
	if strings.ContainsRune("aeiouAEIOU", rune(displayName[0])) {
		return "an"
	}
	return "a"
}
