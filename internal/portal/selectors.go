package portal

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Selectors maps every page element the engine touches to a CSS selector.
// The portal is an ASP.NET WebForms app, so the defaults are the generated
// control IDs. A YAML catalog can override individual entries when the site
// markup shifts.
type Selectors struct {
	AuthLink      string `yaml:"auth_link"`
	UsernameField string `yaml:"username_field"`
	PasswordField string `yaml:"password_field"`
	LoginButton   string `yaml:"login_button"`

	ImportLabel      string `yaml:"import_label"`
	ExportLabel      string `yaml:"export_label"`
	TimeSeriesButton string `yaml:"time_series_button"`

	TradeType    string `yaml:"trade_type"`
	OutputType   string `yaml:"output_type"`
	OutputOption string `yaml:"output_option"`
	ClusterLevel string `yaml:"cluster_level"`
	Indicator    string `yaml:"indicator"`
	Currency     string `yaml:"currency"`
	PageSize     string `yaml:"page_size"`

	Reporter       string `yaml:"reporter"`
	Partner        string `yaml:"partner"`
	PartnerOptions string `yaml:"partner_options"`

	MirrorYearHeaders string `yaml:"mirror_year_headers"`
	MirrorValueCells  string `yaml:"mirror_value_cells"`
	TotalsCells       string `yaml:"totals_cells"`
	WorldColspan      string `yaml:"world_colspan"`
	BilateralColspan  string `yaml:"bilateral_colspan"`

	DownloadButton string `yaml:"download_button"`

	CaptchaImage  string `yaml:"captcha_image"`
	CaptchaAnswer string `yaml:"captcha_answer"`
	CaptchaSubmit string `yaml:"captcha_submit"`

	NewsCheckbox    string `yaml:"news_checkbox"`
	NewsClose       string `yaml:"news_close"`
	RestrictedClose string `yaml:"restricted_close"`

	DeleteProduct      string `yaml:"delete_product"`
	ProductBox         string `yaml:"product_box"`
	ProductFirstOption string `yaml:"product_first_option"`
	DeleteCountry      string `yaml:"delete_country"`
	CountryInput       string `yaml:"country_input"`
	CountryOptions     string `yaml:"country_options"`
}

// DefaultSelectors returns the selector catalog for the current portal markup.
func DefaultSelectors() Selectors {
	return Selectors{
		AuthLink:      "#ctl00_MenuControl_Label_Login",
		UsernameField: "#Username",
		PasswordField: "#Password",
		LoginButton:   `button[name="button"]`,

		ImportLabel:      "#ctl00_PageContent_label_RadioButton_TradeType_Import",
		ExportLabel:      "#ctl00_PageContent_label_RadioButton_TradeType_Export",
		TimeSeriesButton: "#ctl00_PageContent_Button_TimeSeries",

		TradeType:    "#ctl00_NavigationControl_DropDownList_TradeType",
		OutputType:   "#ctl00_NavigationControl_DropDownList_OutputType",
		OutputOption: "#ctl00_NavigationControl_DropDownList_OutputOption",
		ClusterLevel: "#ctl00_NavigationControl_DropDownList_ProductClusterLevel",
		Indicator:    "#ctl00_NavigationControl_DropDownList_TS_Indicator",
		Currency:     "#ctl00_NavigationControl_DropDownList_TS_Currency",
		PageSize:     "#ctl00_PageContent_GridViewPanelControl_DropDownList_NumTimePeriod",

		Reporter:       "#ctl00_NavigationControl_DropDownList_Country",
		Partner:        "#ctl00_NavigationControl_DropDownList_Partner",
		PartnerOptions: "#ctl00_NavigationControl_DropDownList_Partner option",

		MirrorYearHeaders: "#ctl00_PageContent_MyGridView1 tr:nth-child(2) th",
		MirrorValueCells:  "#ctl00_PageContent_MyGridView1 tr:nth-child(3) td",
		TotalsCells:       "#ctl00_PageContent_MyGridView1 tr:nth-child(4) td",
		WorldColspan:      "#ctl00_PageContent_MyGridView1_ctl28_HeaderColspan_Partner",
		BilateralColspan:  "#ctl00_PageContent_MyGridView1_ctl28_HeaderColspan_Bilateral",

		DownloadButton: "#ctl00_PageContent_GridViewPanelControl_ImageButton_Text",

		CaptchaImage:  ".div_captchaImg",
		CaptchaAnswer: "#ctl00_PageContent_CaptchaAnswer",
		CaptchaSubmit: "#ctl00_PageContent_ButtonvalidateCaptcha",

		NewsCheckbox:    "#ctl00_MenuControl_CheckBox_DoNotShowAgain",
		NewsClose:       "#ctl00_MenuControl_button1",
		RestrictedClose: "#ctl00_MenuControl_button_CloseRestrictedPopup_Bottom",

		DeleteProduct:      "#ctl00_PageContent_Image_deleteProduct",
		ProductBox:         "#ctl00_PageContent_RadComboBox_Product",
		ProductFirstOption: "#ctl00_PageContent_RadComboBox_Product_c0",
		DeleteCountry:      "#ctl00_PageContent_Image_DeleteCountry",
		CountryInput:       "#ctl00_PageContent_RadComboBox_Country_Input",
		CountryOptions:     "#ctl00_PageContent_RadComboBox_Country_DropDown div",
	}
}

// LoadSelectors reads a YAML catalog and overlays it on the defaults. Entries
// absent from the file keep their default selector.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	data, err := os.ReadFile(path)
	if err != nil {
		return sel, eris.Wrapf(err, "portal: read selector catalog %s", path)
	}
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return sel, eris.Wrapf(err, "portal: parse selector catalog %s", path)
	}
	return sel, nil
}
