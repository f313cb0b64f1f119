package normalize

// regionAliases maps lower-cased spellings, abbreviations and common
// locative forms to a canonical region name.
var regionAliases = map[string]string{
	"москва":             "Москва",
	"москве":             "Москва",
	"мск":                "Москва",
	"moscow":             "Москва",
	"moskva":             "Москва",
	"г. москва":          "Москва",
	"г.москва":           "Москва",
	"московская область": "Московская область",
	"подмосковье":        "Московская область",
	"мо":                 "Московская область",

	"санкт-петербург":       "Санкт-Петербург",
	"санкт-петербурге":      "Санкт-Петербург",
	"спб":                   "Санкт-Петербург",
	"питер":                 "Санкт-Петербург",
	"петербург":             "Санкт-Петербург",
	"saint petersburg":      "Санкт-Петербург",
	"sankt-peterburg":       "Санкт-Петербург",
	"ленинградская область": "Ленинградская область",
	"ло":                    "Ленинградская область",

	"новосибирск":      "Новосибирск",
	"новосибирске":     "Новосибирск",
	"екатеринбург":     "Екатеринбург",
	"екатеринбурге":    "Екатеринбург",
	"екб":              "Екатеринбург",
	"казань":           "Казань",
	"казани":           "Казань",
	"нижний новгород":  "Нижний Новгород",
	"нижнем новгороде": "Нижний Новгород",
	"нн":               "Нижний Новгород",
	"челябинск":        "Челябинск",
	"челябинске":       "Челябинск",
	"самара":           "Самара",
	"самаре":           "Самара",
	"омск":             "Омск",
	"омске":            "Омск",
	"ростов-на-дону":   "Ростов-на-Дону",
	"ростове-на-дону":  "Ростов-на-Дону",
	"ростов":           "Ростов-на-Дону",
	"уфа":              "Уфа",
	"уфе":              "Уфа",
	"красноярск":       "Красноярск",
	"красноярске":      "Красноярск",
	"воронеж":          "Воронеж",
	"воронеже":         "Воронеж",
	"пермь":            "Пермь",
	"перми":            "Пермь",
	"волгоград":        "Волгоград",
	"волгограде":       "Волгоград",
	"краснодар":        "Краснодар",
	"краснодаре":       "Краснодар",
	"владивосток":      "Владивосток",
	"владивостоке":     "Владивосток",
	"хабаровск":        "Хабаровск",
	"хабаровске":       "Хабаровск",
	"иркутск":          "Иркутск",
	"иркутске":         "Иркутск",
	"тюмень":           "Тюмень",
	"тюмени":           "Тюмень",
}
